package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/textinput"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/submitter"
)

const invalidDateText = "enter a date as YYYY-MM-DD"

type fieldKind int

const (
	kindText fieldKind = iota
	kindDate
	kindChoice
	kindFile
)

type choice struct {
	value string
	label string
}

// field is one form row. Choice fields cycle through their options instead of taking input.
type field struct {
	key     string
	label   string
	kind    fieldKind
	input   textinput.Model
	choices []choice
	idx     int
	// attached is the path of the last file sent to the wizard
	attached string
}

func newTextField(key, label, value string, kind fieldKind) *field {
	in := textinput.New()
	in.Prompt = ""
	in.CharLimit = 1000
	in.SetValue(value)
	switch kind {
	case kindDate:
		in.Placeholder = core.DateLayout
		in.CharLimit = len(core.DateLayout)
	case kindFile:
		in.Placeholder = "path/to/description.pdf"
	}
	return &field{key: key, label: label, kind: kind, input: in}
}

func newChoiceField(key, label string, choices []choice, value string) *field {
	f := &field{key: key, label: label, kind: kindChoice, choices: choices}
	for i, c := range choices {
		if c.value == value {
			f.idx = i
		}
	}
	return f
}

func (f *field) value() string {
	if f.kind == kindChoice {
		if len(f.choices) == 0 {
			return ""
		}
		return f.choices[f.idx].value
	}
	return f.input.Value()
}

func (f *field) cycle(delta int) {
	if n := len(f.choices); n > 0 {
		f.idx = (f.idx + delta + n) % n
	}
}

// date parses the input of a date field; ok is false when it is not a valid date.
func (f *field) date() (t time.Time, ok bool) {
	t, err := core.ParseDate(f.input.Value())
	return t, err == nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(core.DateLayout)
}

func optionChoices(opts []project.Option) []choice {
	cs := make([]choice, len(opts))
	for i, o := range opts {
		cs[i] = choice{value: o.Value, label: o.Label}
	}
	return cs
}

func stringChoices(vals []string) []choice {
	cs := make([]choice, len(vals))
	for i, v := range vals {
		cs[i] = choice{value: v, label: v}
	}
	return cs
}

// parentChoices offers "none" then every decided project of the submitter.
func parentChoices(own []project.Project) []choice {
	cs := []choice{{value: "", label: "none (new project)"}}
	for _, p := range own {
		cs = append(cs, choice{value: p.ID, label: p.EnglishName + " (" + p.Status().String() + ")"})
	}
	return cs
}

func draftFields(d project.Draft, own []project.Project) []*field {
	return []*field{
		newTextField(project.FieldThaiName, "Thai name", d.ThaiName, kindText),
		newTextField(project.FieldEnglishName, "English name", d.EnglishName, kindText),
		newTextField(project.FieldSummary, "Summary", d.Summary, kindText),
		newTextField(project.FieldStartDate, "Start date", formatDate(d.StartDate), kindDate),
		newTextField(project.FieldEndDate, "End date", formatDate(d.EndDate), kindDate),
		newChoiceField(project.FieldSDGType, "SDG", optionChoices(project.SDGTypes), d.SDGType),
		newChoiceField(project.FieldProjectType, "Project type", optionChoices(project.ProjectTypes), d.ProjectType),
		newTextField(project.FieldDescriptionFile, "Description file", "", kindFile),
		newChoiceField(project.FieldParentProjectID, "Continues", parentChoices(own), d.ParentProjectID),
	}
}

func profileFields(p submitter.Profile) []*field {
	return []*field{
		newChoiceField(submitter.FieldNamePrefix, "Prefix", stringChoices(submitter.NamePrefixes), p.NamePrefix),
		newTextField(submitter.FieldFirstName, "First name", p.FirstName, kindText),
		newTextField(submitter.FieldLastName, "Last name", p.LastName, kindText),
		newChoiceField(submitter.FieldGender, "Gender", stringChoices(submitter.Genders), p.Gender),
		newTextField(submitter.FieldBirthDate, "Birth date", formatDate(p.BirthDate), kindDate),
		newChoiceField(submitter.FieldEducationLevel, "Education", stringChoices(submitter.EducationLevels), p.EducationLevel),
		newTextField(submitter.FieldEmail, "Email", p.Email, kindText),
		newTextField(submitter.FieldPhone, "Phone", p.Phone, kindText),
	}
}

// applyDraft copies the value of f into d. It returns false for an unparsable date.
func applyDraft(f *field, d *project.Draft) bool {
	switch f.key {
	case project.FieldThaiName:
		d.ThaiName = f.value()
	case project.FieldEnglishName:
		d.EnglishName = f.value()
	case project.FieldSummary:
		d.Summary = f.value()
	case project.FieldStartDate, project.FieldEndDate:
		t, ok := f.date()
		if f.key == project.FieldStartDate {
			d.StartDate = t
		} else {
			d.EndDate = t
		}
		return ok
	case project.FieldSDGType:
		d.SDGType = f.value()
	case project.FieldProjectType:
		d.ProjectType = f.value()
	case project.FieldParentProjectID:
		d.ParentProjectID = f.value()
	}
	return true
}

func applyProfile(f *field, p *submitter.Profile) bool {
	switch f.key {
	case submitter.FieldNamePrefix:
		p.NamePrefix = f.value()
	case submitter.FieldFirstName:
		p.FirstName = f.value()
	case submitter.FieldLastName:
		p.LastName = f.value()
	case submitter.FieldGender:
		p.Gender = f.value()
	case submitter.FieldBirthDate:
		t, ok := f.date()
		p.BirthDate = t
		return ok
	case submitter.FieldEducationLevel:
		p.EducationLevel = f.value()
	case submitter.FieldEmail:
		p.Email = f.value()
	case submitter.FieldPhone:
		p.Phone = f.value()
	}
	return true
}
