package ui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/nhle/roundmail/internal/model"
)

// ErrAborted is returned when the user leaves a prompt.
var ErrAborted = errors.New("prompt aborted")

// LoginAnswers is what the login prompt collects.
type LoginAnswers struct {
	Server   string
	Username string
	Password string
	Remember bool
}

// LoginForm builds the prompt, prefilled with defaults. Fields already
// known are still shown so they can be corrected.
func LoginForm(answers *LoginAnswers) *huh.Form {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Server").
				Description("Roundcube host or URL").
				Placeholder("mail.example.com").
				Value(&answers.Server).
				Validate(validateServer),
			huh.NewInput().
				Title("Username").
				Placeholder("me@example.com").
				Value(&answers.Username).
				Validate(validateRequired("Username")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&answers.Password).
				Validate(validateRequired("Password")),
			huh.NewConfirm().
				Title("Remember password in the keyring?").
				Value(&answers.Remember),
		),
	)
}

// PromptLogin asks for the login details, starting from defaults.
func PromptLogin(defaults LoginAnswers) (LoginAnswers, error) {
	answers := defaults
	if err := LoginForm(&answers).Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return LoginAnswers{}, ErrAborted
		}
		return LoginAnswers{}, fmt.Errorf("running login prompt: %w", err)
	}
	answers.Server = strings.TrimSpace(answers.Server)
	answers.Username = strings.TrimSpace(answers.Username)
	return answers, nil
}

// PickRecipients lets the user choose among autocomplete results and
// returns the chosen entries in result order.
func PickRecipients(result *model.SearchResult) ([]model.SearchResultItem, error) {
	if result == nil || len(result.Results) == 0 {
		return nil, nil
	}

	options := make([]huh.Option[int], 0, len(result.Results))
	for i, item := range result.Results {
		label := item.Display
		if label == "" {
			label = item.Name
		}
		options = append(options, huh.NewOption(label, i))
	}

	var picked []int
	err := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[int]().
				Title("Recipients for " + result.Query).
				Options(options...).
				Value(&picked),
		),
	).Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return nil, ErrAborted
	}
	if err != nil {
		return nil, fmt.Errorf("running recipient picker: %w", err)
	}

	chosen := make([]model.SearchResultItem, 0, len(picked))
	for i, item := range result.Results {
		for _, p := range picked {
			if p == i {
				chosen = append(chosen, item)
				break
			}
		}
	}
	return chosen, nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func validateServer(s string) error {
	_, err := model.NormalizeServer(s)
	return err
}
