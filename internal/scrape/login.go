package scrape

import (
	"regexp"

	"github.com/nhle/roundmail/internal/model"
)

// LoginFieldNames are the hidden inputs the login POST echoes back.
var LoginFieldNames = []string{"_token", "_task", "_action", "_timezone", "_url"}

var (
	inputTagPattern = regexp.MustCompile(`(?i)<input\b[^>]*>`)

	// Attribute patterns require a separator before the name so that
	// e.g. data-name= or username= never match.
	nameAttrPattern  = regexp.MustCompile(`(?i)(?:^|[\s"'])name\s*=\s*["']([^"']+)["']`)
	valueAttrPattern = regexp.MustCompile(`(?i)(?:^|[\s"'])value\s*=\s*["']([^"']*)["']`)

	logoTagPattern = regexp.MustCompile(`(?i)<img\b[^>]*\bid\s*=\s*["']logo["'][^>]*>`)
	srcAttrPattern = regexp.MustCompile(`(?i)(?:^|[\s"'])src\s*=\s*["']([^"']+)["']`)
)

// ParseLoginForm collects the values of the named inputs in page and the
// src of the logo image. Names that never appear are absent from Fields.
func ParseLoginForm(page string, names []string) model.LoginForm {
	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		wanted[n] = true
	}

	form := model.LoginForm{Fields: model.FormFields{}}
	for _, in := range ParseAllInputs(page) {
		if wanted[in.Name] {
			form.Fields[in.Name] = in.Value
		}
	}

	if tag := logoTagPattern.FindString(page); tag != "" {
		if m := srcAttrPattern.FindStringSubmatch(tag); m != nil {
			form.LogoURL = DecodeEntities(m[1])
		}
	}

	return form
}

// ParseAllInputs returns every input element that carries a name, in
// document order. A missing value attribute yields "".
func ParseAllInputs(page string) []model.FormInput {
	var inputs []model.FormInput

	for _, tag := range inputTagPattern.FindAllString(page, -1) {
		attrs := tag[len("<input"):]
		nm := nameAttrPattern.FindStringSubmatch(attrs)
		if nm == nil {
			continue
		}

		value := ""
		if vm := valueAttrPattern.FindStringSubmatch(attrs); vm != nil {
			value = DecodeEntities(vm[1])
		}

		inputs = append(inputs, model.FormInput{Name: nm[1], Value: value})
	}

	return inputs
}
