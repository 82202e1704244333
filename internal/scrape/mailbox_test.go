package scrape

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listExec = `this.set_pagetitle("Roundcube Webmail :: Inbox");
this.set_unread_count("INBOX",2,true);
this.set_rowcount("Messages 1 to 3 of 3");
this.set_message_coltypes(["threads","subject","status","fromto","date","size","flag","attachment"],null,"arrival");
this.set_quota({"used":10,"total":100,"percent":10,"free":90,"type":"text","folder":"ROOT","title":"10 KB"});
this.add_message_row(30,{"subject":"Hello &amp; welcome","fromto":"<span class=\"adr\"><span title=\"Alice@Example.com\" class=\"rcmContactAddress\">Alice<\/span><\/span>","date":"Today 10:00","size":"2 KB"},{"ctype":"multipart/mixed","mbox":"INBOX"},false);
this.add_message_row(20,{"subject":"Braces {inside} \"quotes\"","fromto":"bob@example.com","date":"Yesterday","size":"1 KB"},{"seen":1,"flagged":true,"ctype":"text/plain","mbox":"INBOX"},false);
this.add_message_row(10,{"subject":"Caf&eacute;","fromto":"<span class=\"adr\"><span class=\"rcmContactAddress\">Carol<\/span><\/span>","date":"Mon","size":"3 KB"},{"seen":"1","flagged":0,"mbox":"INBOX"},false);
this.set_message_count(3);`

func TestParseMailbox(t *testing.T) {
	snap := ParseMailbox(listExec, nil)

	assert.Equal(t, "INBOX", snap.Mailbox)
	assert.Equal(t, "Roundcube Webmail :: Inbox", snap.PageTitle)
	assert.Equal(t, 2, snap.UnreadCount)
	assert.Equal(t, "Messages 1 to 3 of 3", snap.RowCount)
	assert.Equal(t, []string{"threads", "subject", "status", "fromto", "date", "size", "flag", "attachment"}, snap.ColumnTypes)

	require.NotNil(t, snap.Quota)
	assert.Equal(t, int64(10), snap.Quota.Used)
	assert.Equal(t, int64(100), snap.Quota.Total)

	require.Len(t, snap.Messages, 3)

	first := snap.Messages[0]
	assert.Equal(t, int64(30), first.ID)
	assert.Equal(t, "Hello & welcome", first.Subject)
	assert.Equal(t, "alice@example.com", first.FromTo)
	assert.Equal(t, "Today 10:00", first.Date)
	assert.Equal(t, "2 KB", first.Size)
	assert.Equal(t, 0, first.Seen, "missing seen flag means unseen")
	assert.False(t, first.Flagged)
	assert.Equal(t, "multipart/mixed", first.CType)
	assert.Equal(t, "INBOX", first.Mbox)

	second := snap.Messages[1]
	assert.Equal(t, `Braces {inside} "quotes"`, second.Subject)
	assert.Equal(t, "bob@example.com", second.FromTo)
	assert.Equal(t, 1, second.Seen)
	assert.True(t, second.Flagged)

	third := snap.Messages[2]
	assert.Equal(t, "Café", third.Subject)
	assert.Equal(t, "carol", third.FromTo)
	assert.Equal(t, 1, third.Seen)
	assert.False(t, third.Flagged)
}

func TestParseMailboxKeepsSourceOrder(t *testing.T) {
	exec := `this.add_message_row(5,{"subject":"e"},{"mbox":"INBOX"});` +
		`this.add_message_row(9,{"subject":"i"},{"mbox":"INBOX"});` +
		`this.add_message_row(1,{"subject":"a"},{"mbox":"INBOX"});`

	snap := ParseMailbox(exec, nil)
	require.Len(t, snap.Messages, 3)

	var ids []int64
	for _, m := range snap.Messages {
		ids = append(ids, m.ID)
	}
	assert.Equal(t, []int64{5, 9, 1}, ids)
}

func TestParseMailboxSkipsMalformedRow(t *testing.T) {
	exec := `this.add_message_row(3,{"subject":"ok"},{"mbox":"INBOX"});` +
		`this.add_message_row(2,{"subject": broken},{"mbox":"INBOX"});` +
		`this.add_message_row(1,{"subject":"also ok"},{"mbox":"INBOX"});`

	snap := ParseMailbox(exec, nil)
	require.Len(t, snap.Messages, 2)
	assert.Equal(t, int64(3), snap.Messages[0].ID)
	assert.Equal(t, int64(1), snap.Messages[1].ID)
}

func TestParseMailboxQuotedUID(t *testing.T) {
	exec := `this.add_message_row("42-Sent",{"subject":"s","to":"dan@example.com"},{"mbox":"Sent"});`

	snap := ParseMailbox(exec, nil)
	require.Len(t, snap.Messages, 1)
	assert.Equal(t, int64(42), snap.Messages[0].ID)
	assert.Equal(t, "dan@example.com", snap.Messages[0].FromTo)
	assert.Equal(t, "Sent", snap.Mailbox, "mailbox falls back to the rows' mbox")
}

func TestParseMailboxEmpty(t *testing.T) {
	for _, exec := range []string{"", "this.show_contentframe(false);", "garbage {{{"} {
		snap := ParseMailbox(exec, nil)
		assert.True(t, snap.Empty())
		assert.NotNil(t, snap.Messages)
		assert.Empty(t, snap.Messages)
		assert.Nil(t, snap.Quota)
	}
}

func TestSessionExpired(t *testing.T) {
	assert.True(t, SessionExpired(`this.display_message("Your session is invalid or expired.","error",0);`))
	assert.True(t, SessionExpired(`this.session_error("./?_task=login&_err=session");`))
	assert.False(t, SessionExpired(listExec))
}
