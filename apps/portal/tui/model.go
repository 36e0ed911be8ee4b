// Package tui is the terminal front-end of the project submission wizard.
//
// Keys: tab/shift+tab move between fields, left/right change a choice,
// enter (or ctrl+n) goes to the next step, esc (or ctrl+b) goes back,
// ctrl+r resets the form and ctrl+c abandons it. On the review step,
// space toggles the acknowledgement and enter submits.
package tui

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/project"
	"github.com/trezcool/masomo-portal/core/session"
	"github.com/trezcool/masomo-portal/core/submitter"
	"github.com/trezcool/masomo-portal/core/wizard"
)

// ErrCancelled is returned by Run when the user quits before submitting.
var ErrCancelled = errors.New("submission cancelled")

const defaultExpiryCheck = time.Second

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#4D96FF"))
	labelStyle   = lipgloss.NewStyle().Width(18)
	focusStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FFD93D"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF6B6B"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6BCB77"))
	helpStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)

type Options struct {
	// Expired reports whether the session ended; the form is abandoned when it does.
	Expired func() bool
	// ExpiryCheck is the interval between two Expired checks.
	ExpiryCheck time.Duration
	Input       io.Reader
	Output      io.Writer
}

type (
	submitResultMsg struct {
		project project.Project
		err     error
	}
	expiryTickMsg struct{}
)

// Model drives a wizard.Wizard from keyboard events.
type Model struct {
	ctx  context.Context
	wz   *wizard.Wizard
	opts Options

	fields     []*field
	fieldsStep wizard.Step
	focus      int
	dateErrs   map[string]string

	spinner    spinner.Model
	submitting bool // set as soon as the submit command is issued
	confirming bool // waiting for the reset confirmation
	status     string
	err        error

	done      bool
	cancelled bool
	expired   bool
	pending   *wizard.PendingProjectError
}

func NewModel(ctx context.Context, wz *wizard.Wizard, opts Options) *Model {
	if opts.ExpiryCheck <= 0 {
		opts.ExpiryCheck = defaultExpiryCheck
	}
	m := &Model{
		ctx:      ctx,
		wz:       wz,
		opts:     opts,
		dateErrs: make(map[string]string),
		spinner:  spinner.New(spinner.WithSpinner(spinner.Dot)),
	}
	m.loadFields()
	return m
}

// Run shows the form until the project is submitted or the user quits.
func Run(ctx context.Context, wz *wizard.Wizard, opts Options) (project.Project, error) {
	var progOpts []tea.ProgramOption
	progOpts = append(progOpts, tea.WithContext(ctx))
	if opts.Input != nil {
		progOpts = append(progOpts, tea.WithInput(opts.Input))
	}
	if opts.Output != nil {
		progOpts = append(progOpts, tea.WithOutput(opts.Output))
	}

	final, err := tea.NewProgram(NewModel(ctx, wz, opts), progOpts...).Run()
	if err != nil {
		wz.Abandon()
		return project.Project{}, err
	}
	return final.(*Model).Result()
}

// Result returns the submitted project, or why there is none.
func (m *Model) Result() (project.Project, error) {
	if p, ok := m.wz.Submitted(); ok {
		return p, nil
	}
	switch {
	case m.expired:
		return project.Project{}, session.ErrSessionExpired
	case m.pending != nil:
		return project.Project{}, m.pending
	default:
		return project.Project{}, ErrCancelled
	}
}

func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.focusCmd(), m.expiryTick())
}

func (m *Model) expiryTick() tea.Cmd {
	if m.opts.Expired == nil {
		return nil
	}
	return tea.Tick(m.opts.ExpiryCheck, func(time.Time) tea.Msg { return expiryTickMsg{} })
}

// loadFields rebuilds the form rows of the current step from the wizard state.
func (m *Model) loadFields() {
	m.fieldsStep = m.wz.Step()
	m.focus = 0
	switch m.fieldsStep {
	case wizard.StepProjectInfo:
		m.fields = draftFields(m.wz.Draft(), m.wz.OwnProjects())
	case wizard.StepUserInfo:
		m.fields = profileFields(m.wz.Profile())
	default:
		m.fields = nil
	}
}

// focusCmd focuses the input of the focused row and blurs the others.
func (m *Model) focusCmd() tea.Cmd {
	var cmd tea.Cmd
	for i, f := range m.fields {
		if f.kind == kindChoice {
			continue
		}
		if i == m.focus {
			cmd = f.input.Focus()
		} else {
			f.input.Blur()
		}
	}
	return cmd
}

func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case submitResultMsg:
		return m.handleSubmitResult(msg)
	case expiryTickMsg:
		if m.opts.Expired != nil && m.opts.Expired() {
			m.expired = true
			m.wz.Abandon()
			m.done = true
			return m, tea.Quit
		}
		return m, m.expiryTick()
	case spinner.TickMsg:
		if !m.submitting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	// cursor blink
	if m.focus < len(m.fields) && m.fields[m.focus].kind != kindChoice {
		var cmd tea.Cmd
		f := m.fields[m.focus]
		f.input, cmd = f.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		if _, ok := m.wz.Submitted(); !ok {
			m.wz.Abandon()
			m.cancelled = true
		}
		m.done = true
		return m, tea.Quit
	}

	if m.confirming {
		switch key {
		case "y", "Y":
			m.confirming = false
			if err := m.wz.Reset(true); err != nil {
				m.err = err
				return m, nil
			}
			m.err = nil
			m.status = "the form was reset"
			m.dateErrs = make(map[string]string)
			m.loadFields()
			return m, m.focusCmd()
		default:
			m.confirming = false
			return m, nil
		}
	}

	if m.pending != nil {
		if key == "enter" || key == "q" || key == "esc" {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	}

	switch m.wz.Step() {
	case wizard.StepSubmitted:
		if key == "enter" || key == "q" || key == "esc" {
			m.done = true
			return m, tea.Quit
		}
		return m, nil
	case wizard.StepReview:
		return m.handleReviewKey(key)
	}

	switch key {
	case "ctrl+r":
		if !m.wz.Submitting() {
			m.confirming = true
		}
		return m, nil
	case "tab", "down":
		m.leaveField()
		m.focus = (m.focus + 1) % len(m.fields)
		return m, m.focusCmd()
	case "shift+tab", "up":
		m.leaveField()
		m.focus = (m.focus - 1 + len(m.fields)) % len(m.fields)
		return m, m.focusCmd()
	case "enter", "ctrl+n":
		m.applyAll()
		return m.next()
	case "esc", "ctrl+b":
		m.leaveField()
		return m.back()
	}

	f := m.fields[m.focus]
	if f.kind == kindChoice {
		switch key {
		case "left":
			f.cycle(-1)
			m.apply(f)
		case "right", " ":
			f.cycle(1)
			m.apply(f)
		}
		return m, nil
	}
	var cmd tea.Cmd
	f.input, cmd = f.input.Update(msg)
	return m, cmd
}

func (m *Model) handleReviewKey(key string) (tea.Model, tea.Cmd) {
	if m.submitting {
		// the confirm action is disabled while a submission is in flight
		return m, nil
	}
	switch key {
	case " ", "x":
		m.err = m.wz.SetConsent(!m.wz.Consent())
	case "enter", "ctrl+n":
		if !m.wz.Consent() {
			m.err = wizard.ErrConsentRequired
			return m, nil
		}
		m.err = nil
		m.status = ""
		m.submitting = true
		return m, tea.Batch(m.submitCmd(), m.spinner.Tick)
	case "esc", "ctrl+b":
		return m.back()
	case "ctrl+r":
		m.confirming = true
	}
	return m, nil
}

func (m *Model) submitCmd() tea.Cmd {
	ctx, wz := m.ctx, m.wz
	return func() tea.Msg {
		p, err := wz.Submit(ctx)
		return submitResultMsg{project: p, err: err}
	}
}

func (m *Model) handleSubmitResult(msg submitResultMsg) (tea.Model, tea.Cmd) {
	m.submitting = false
	var pErr *wizard.PendingProjectError
	switch {
	case msg.err == nil:
		m.err = nil
		m.status = ""
	case errors.Is(msg.err, wizard.ErrSubmissionDiscarded), errors.Is(msg.err, wizard.ErrSubmissionInFlight):
		// a reset happened meanwhile, or another submission is still running
	case errors.Is(msg.err, session.ErrSessionExpired), errors.Is(msg.err, session.ErrNotAuthenticated):
		m.expired = true
		m.wz.Abandon()
		m.done = true
		return m, tea.Quit
	case errors.As(msg.err, &pErr):
		m.pending = pErr
	default:
		m.err = msg.err
	}
	return m, nil
}

func (m *Model) next() (tea.Model, tea.Cmd) {
	m.status = ""
	if err := m.wz.Next(); err != nil {
		if errors.Is(err, wizard.ErrStepInvalid) {
			m.err = errors.New("please fix the highlighted fields")
			m.focusFirstError()
			return m, m.focusCmd()
		}
		m.err = err
		return m, nil
	}
	m.err = nil
	m.loadFields()
	return m, m.focusCmd()
}

func (m *Model) back() (tea.Model, tea.Cmd) {
	m.status = ""
	if err := m.wz.Back(); err != nil {
		m.err = err
		return m, nil
	}
	m.err = nil
	if m.wz.Step() != m.fieldsStep {
		m.loadFields()
	}
	return m, m.focusCmd()
}

func (m *Model) focusFirstError() {
	errs := m.fieldErrors()
	for i, f := range m.fields {
		if _, ok := errs[f.key]; ok {
			m.focus = i
			return
		}
	}
}

// leaveField sends the value of the focused field to the wizard.
func (m *Model) leaveField() {
	if m.focus < len(m.fields) {
		m.apply(m.fields[m.focus])
	}
}

func (m *Model) applyAll() {
	for _, f := range m.fields {
		m.apply(f)
	}
}

func (m *Model) apply(f *field) {
	if f.kind == kindFile {
		m.attach(f)
		return
	}

	var ok bool
	var err error
	switch m.fieldsStep {
	case wizard.StepProjectInfo:
		err = m.wz.UpdateDraft(func(d *project.Draft) { ok = applyDraft(f, d) })
	case wizard.StepUserInfo:
		err = m.wz.UpdateProfile(func(p *submitter.Profile) { ok = applyProfile(f, p) })
	default:
		return
	}
	if err != nil {
		m.err = err
		return
	}
	if f.kind == kindDate {
		if ok {
			delete(m.dateErrs, f.key)
		} else {
			m.dateErrs[f.key] = invalidDateText
		}
	}
}

func (m *Model) attach(f *field) {
	path := strings.TrimSpace(f.input.Value())
	if path == "" || path == f.attached {
		return
	}
	f.attached = path
	if err := m.wz.AttachDescriptionFile(path); err != nil && !errors.Is(err, project.ErrFileTooLarge) {
		// the size error is shown under the field
		m.err = err
	}
}

func (m *Model) fieldErrors() core.FieldErrors {
	var fe core.FieldErrors
	if m.fieldsStep == wizard.StepUserInfo {
		fe = m.wz.ProfileErrors()
	} else {
		fe = m.wz.DraftErrors()
	}
	for k, v := range m.dateErrs {
		fe[k] = v
	}
	return fe
}

func (m *Model) View() string {
	var b strings.Builder
	step := m.wz.Step()

	switch {
	case m.pending != nil:
		b.WriteString(titleStyle.Render("Project awaiting approval") + "\n\n")
		b.WriteString(pendingText(m.pending) + "\n\n")
		b.WriteString(helpStyle.Render("enter: quit") + "\n")
		return b.String()
	case step == wizard.StepSubmitted:
		p, _ := m.wz.Submitted()
		b.WriteString(titleStyle.Render("Project submitted") + "\n\n")
		b.WriteString(successStyle.Render(fmt.Sprintf("%s (%s) is %s.", p.EnglishName, p.ID, p.Status())) + "\n\n")
		b.WriteString(helpStyle.Render("enter: quit") + "\n")
		return b.String()
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Submit a project · step %d/3 · %s", step, step)) + "\n\n")
	if step == wizard.StepReview {
		b.WriteString(m.reviewView())
	} else {
		b.WriteString(m.formView())
	}

	if m.confirming {
		b.WriteString("\n" + focusStyle.Render("Reset the form? Everything entered will be lost. (y/n)") + "\n")
	}
	if m.status != "" {
		b.WriteString("\n" + helpStyle.Render(m.status) + "\n")
	}
	if m.err != nil {
		b.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}

	b.WriteString("\n" + helpStyle.Render(m.help(step)) + "\n")
	return b.String()
}

func (m *Model) formView() string {
	var b strings.Builder
	errs := m.fieldErrors()
	for i, f := range m.fields {
		label := f.label
		if i == m.focus {
			label = focusStyle.Render("> " + label)
		} else {
			label = "  " + label
		}
		b.WriteString(labelStyle.Render(label))

		switch f.kind {
		case kindChoice:
			b.WriteString("< " + f.choices[f.idx].label + " >")
		case kindFile:
			b.WriteString(f.input.View())
			if d := m.wz.Draft(); d.DescriptionFileName != "" {
				b.WriteString(successStyle.Render("  attached: " + d.DescriptionFileName))
			}
		default:
			b.WriteString(f.input.View())
		}
		b.WriteString("\n")

		if msg, ok := errs[f.key]; ok {
			b.WriteString(labelStyle.Render("") + errorStyle.Render(msg) + "\n")
		}
	}
	return b.String()
}

func (m *Model) reviewView() string {
	var b strings.Builder
	d, p := m.wz.Draft(), m.wz.Profile()

	row := func(label, value string) {
		b.WriteString(labelStyle.Render("  "+label) + value + "\n")
	}
	row("Thai name", d.ThaiName)
	row("English name", d.EnglishName)
	row("Summary", d.Summary)
	row("Period", formatDate(d.StartDate)+" to "+formatDate(d.EndDate))
	row("SDG", project.Label(project.SDGTypes, d.SDGType))
	row("Project type", project.Label(project.ProjectTypes, d.ProjectType))
	row("Description file", d.DescriptionFileName)
	if d.IsContinuation() {
		row("Continues", d.ParentProjectID)
	}
	b.WriteString("\n")
	row("Submitter", p.FullName())
	row("Gender", p.Gender)
	row("Birth date", formatDate(p.BirthDate))
	row("Education", p.EducationLevel)
	row("Email", p.Email)
	row("Phone", p.Phone)

	// server-side field errors stay on the review step
	for _, fe := range []core.FieldErrors{m.wz.DraftErrors(), m.wz.ProfileErrors()} {
		for _, k := range fe.Keys() {
			b.WriteString(errorStyle.Render(fmt.Sprintf("  %s: %s", k, fe[k])) + "\n")
		}
	}

	box := "[ ]"
	if m.wz.Consent() {
		box = "[x]"
	}
	b.WriteString("\n" + box + " I confirm the information above is correct.\n")
	if m.submitting {
		b.WriteString("\n" + m.spinner.View() + " submitting...\n")
	}
	return b.String()
}

func (m *Model) help(step wizard.Step) string {
	if step == wizard.StepReview {
		return "space: acknowledge · enter: submit · esc: back · ctrl+r: reset · ctrl+c: quit"
	}
	return "tab/shift+tab: move · ←/→: choose · enter: next · esc: back · ctrl+r: reset · ctrl+c: quit"
}

func pendingText(err *wizard.PendingProjectError) string {
	if err.Project == nil {
		return fmt.Sprintf("Project %s is still awaiting approval; a new project can be submitted once it is decided.", err.ProjectID)
	}
	p := err.Project
	return fmt.Sprintf("%s (%s) is %s; a new project can be submitted once it is decided.", p.EnglishName, p.ID, p.Status())
}
