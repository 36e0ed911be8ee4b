package project

import (
	"encoding/json"
	"time"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/submitter"
)

// Draft fields (JSON names)
const (
	FieldThaiName        = "thai_name"
	FieldEnglishName     = "english_name"
	FieldSummary         = "summary"
	FieldStartDate       = "start_date"
	FieldEndDate         = "end_date"
	FieldSDGType         = "sdg_type"
	FieldProjectType     = "project_type"
	FieldDescriptionFile = "description_file"
	FieldParentProjectID = "parent_project_id"
)

// Fields lists the Draft fields in form order.
var Fields = []string{
	FieldThaiName,
	FieldEnglishName,
	FieldSummary,
	FieldStartDate,
	FieldEndDate,
	FieldSDGType,
	FieldProjectType,
	FieldDescriptionFile,
	FieldParentProjectID,
}

type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

var (
	// SDGTypes are the 17 UN sustainable development goals.
	SDGTypes = []Option{
		{"no_poverty", "1. No Poverty"},
		{"zero_hunger", "2. Zero Hunger"},
		{"good_health", "3. Good Health and Well-being"},
		{"quality_education", "4. Quality Education"},
		{"gender_equality", "5. Gender Equality"},
		{"clean_water", "6. Clean Water and Sanitation"},
		{"clean_energy", "7. Affordable and Clean Energy"},
		{"decent_work", "8. Decent Work and Economic Growth"},
		{"industry_innovation", "9. Industry, Innovation and Infrastructure"},
		{"reduced_inequalities", "10. Reduced Inequalities"},
		{"sustainable_cities", "11. Sustainable Cities and Communities"},
		{"responsible_consumption", "12. Responsible Consumption and Production"},
		{"climate_action", "13. Climate Action"},
		{"life_below_water", "14. Life Below Water"},
		{"life_on_land", "15. Life on Land"},
		{"peace_justice", "16. Peace, Justice and Strong Institutions"},
		{"partnerships", "17. Partnerships for the Goals"},
	}

	ProjectTypes = []Option{
		{"research", "Research"},
		{"innovation", "Innovation"},
		{"academic_service", "Academic Service"},
		{"community_development", "Community Development"},
		{"cultural_preservation", "Arts and Culture Preservation"},
		{"teaching_development", "Teaching and Learning Development"},
		{"student_activity", "Student Activity"},
		{"social_enterprise", "Social Enterprise"},
		{"environment", "Environmental Conservation"},
		{"health_promotion", "Health Promotion"},
		{"technology_transfer", "Technology Transfer"},
		{"capacity_building", "Capacity Building"},
		{"international_cooperation", "International Cooperation"},
		{"other", "Other"},
	}

	DefaultSDGType     = SDGTypes[0].Value
	DefaultProjectType = ProjectTypes[0].Value
)

func hasOption(opts []Option, val string) bool {
	for _, o := range opts {
		if o.Value == val {
			return true
		}
	}
	return false
}

// Label returns the label of val in opts, or val itself.
func Label(opts []Option, val string) string {
	for _, o := range opts {
		if o.Value == val {
			return o.Label
		}
	}
	return val
}

// Draft is the project part of a submission while it is being filled in.
type Draft struct {
	ThaiName            string    `json:"thai_name" validate:"required,notblank,max=255"`
	EnglishName         string    `json:"english_name" validate:"required,notblank,max=255"`
	Summary             string    `json:"summary" validate:"required,notblank,max=1000"`
	StartDate           time.Time `json:"start_date" validate:"required"`
	EndDate             time.Time `json:"end_date" validate:"required"`
	SDGType             string    `json:"sdg_type" validate:"required,sdg"`
	ProjectType         string    `json:"project_type" validate:"required,projecttype"`
	DescriptionFile     string    `json:"description_file" validate:"descfile"` // base64
	DescriptionFileName string    `json:"description_file_name,omitempty"`
	ParentProjectID     string    `json:"parent_project_id,omitempty"`
}

// NewDraft returns a Draft holding the initial defaults.
func NewDraft() Draft {
	return Draft{
		SDGType:     DefaultSDGType,
		ProjectType: DefaultProjectType,
	}
}

// IsContinuation reports whether the draft continues a previous project.
func (d Draft) IsContinuation() bool {
	return core.CleanString(d.ParentProjectID) != ""
}

// Clean trims text fields and drops the time of day of dates.
func (d *Draft) Clean() {
	d.ThaiName = core.CleanString(d.ThaiName)
	d.EnglishName = core.CleanString(d.EnglishName)
	d.Summary = core.CleanString(d.Summary)
	d.SDGType = core.CleanString(d.SDGType)
	d.ProjectType = core.CleanString(d.ProjectType)
	d.ParentProjectID = core.CleanString(d.ParentProjectID)
	d.StartDate = core.TruncateDate(d.StartDate)
	d.EndDate = core.TruncateDate(d.EndDate)
}

func (d Draft) MarshalJSON() ([]byte, error) {
	type alias Draft
	return json.Marshal(struct {
		alias
		StartDate core.Date `json:"start_date"`
		EndDate   core.Date `json:"end_date"`
	}{alias(d), core.NewDate(d.StartDate), core.NewDate(d.EndDate)})
}

func (d *Draft) UnmarshalJSON(data []byte) error {
	type alias Draft
	aux := struct {
		*alias
		StartDate core.Date `json:"start_date"`
		EndDate   core.Date `json:"end_date"`
	}{alias: (*alias)(d)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	d.StartDate = aux.StartDate.Time
	d.EndDate = aux.EndDate.Time
	return nil
}

// Submission is the payload of a project submission.
type Submission struct {
	Project   Draft             `json:"project"`
	Submitter submitter.Profile `json:"submitter"`
}

func NewSubmission(d Draft, p submitter.Profile) Submission {
	d.Clean()
	p.Clean()
	return Submission{Project: d, Submitter: p}
}

// Validate validates both parts of the submission, prefixing submitter fields with "submitter.".
func (s Submission) Validate() core.FieldErrors {
	fe := Validate(s.Project)
	for k, v := range submitter.Validate(s.Submitter) {
		fe["submitter."+k] = v
	}
	return fe
}

// Project is a submitted project. It is owned by the server: the client only reads it.
type Project struct {
	ID                  string            `json:"id"`
	OwnerID             string            `json:"owner_id"`
	ThaiName            string            `json:"thai_name"`
	EnglishName         string            `json:"english_name"`
	Summary             string            `json:"summary"`
	StartDate           core.Date         `json:"start_date"`
	EndDate             core.Date         `json:"end_date"`
	SDGType             string            `json:"sdg_type"`
	ProjectType         string            `json:"project_type"`
	DescriptionFile     string            `json:"description_file,omitempty"`
	DescriptionFileName string            `json:"description_file_name,omitempty"`
	ParentProjectID     string            `json:"parent_project_id,omitempty"`
	IsContinuation      bool              `json:"is_continuation"`
	Submitter           submitter.Profile `json:"submitter"`
	SubmittedAt         time.Time         `json:"submitted_at"`
	FirstApprovedAt     *time.Time        `json:"first_approved_at"`
	SecondApprovedAt    *time.Time        `json:"second_approved_at"`
	ThirdApprovedAt     *time.Time        `json:"third_approved_at"`
	RejectedAt          *time.Time        `json:"rejected_at"`
	RejectionReason     string            `json:"rejection_reason,omitempty"`
}

// FromSubmission builds the Project recorded for a submission.
func FromSubmission(id, ownerID string, s Submission, submittedAt time.Time) Project {
	d := s.Project
	return Project{
		ID:                  id,
		OwnerID:             ownerID,
		ThaiName:            d.ThaiName,
		EnglishName:         d.EnglishName,
		Summary:             d.Summary,
		StartDate:           core.NewDate(d.StartDate),
		EndDate:             core.NewDate(d.EndDate),
		SDGType:             d.SDGType,
		ProjectType:         d.ProjectType,
		DescriptionFile:     d.DescriptionFile,
		DescriptionFileName: d.DescriptionFileName,
		ParentProjectID:     d.ParentProjectID,
		IsContinuation:      d.IsContinuation(),
		Submitter:           s.Submitter,
		SubmittedAt:         submittedAt,
	}
}

// Status returns the display status of p.
func (p Project) Status() Status { return StatusOf(p) }

// Action is a status transition requested by an approver.
type Action string

const (
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
)

type StatusUpdate struct {
	Action Action `json:"action" validate:"required,oneof=approve reject"`
	Reason string `json:"reason,omitempty" validate:"max=1000"`
}

type QueryFilter struct {
	OwnerID string `query:"owner_id"`
	Status  string `query:"status"` // Status code, eg. "awaiting_first"
	Search  string `query:"search"`
}

func (qf *QueryFilter) Clean() {
	qf.OwnerID = core.CleanString(qf.OwnerID)
	qf.Status = core.CleanString(qf.Status, true /* lower */)
	qf.Search = core.CleanString(qf.Search)
}

// Matches reports whether p satisfies every set filter field.
func (qf QueryFilter) Matches(p Project) bool {
	if qf.OwnerID != "" && p.OwnerID != qf.OwnerID {
		return false
	}
	if qf.Status != "" && p.Status().Code() != qf.Status {
		return false
	}
	if qf.Search != "" && !containsFold(p.ThaiName, qf.Search) && !containsFold(p.EnglishName, qf.Search) {
		return false
	}
	return true
}
