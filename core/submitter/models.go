package submitter

import (
	"encoding/json"
	"time"

	"github.com/trezcool/masomo-portal/core"
)

// Profile fields (JSON names)
const (
	FieldNamePrefix     = "name_prefix"
	FieldFirstName      = "first_name"
	FieldLastName       = "last_name"
	FieldGender         = "gender"
	FieldBirthDate      = "birth_date"
	FieldEducationLevel = "education_level"
	FieldEmail          = "email"
	FieldPhone          = "phone"
)

// Fields lists the Profile fields in form order.
var Fields = []string{
	FieldNamePrefix,
	FieldFirstName,
	FieldLastName,
	FieldGender,
	FieldBirthDate,
	FieldEducationLevel,
	FieldEmail,
	FieldPhone,
}

var (
	NamePrefixes    = []string{"mr", "mrs", "ms", "miss", "dr", "prof"}
	Genders         = []string{"male", "female", "other", "unspecified"}
	EducationLevels = []string{"primary", "secondary", "vocational", "bachelor", "master", "doctorate"}
)

// Profile identifies the person submitting a project.
type Profile struct {
	NamePrefix     string    `json:"name_prefix" validate:"required,oneof=mr mrs ms miss dr prof"`
	FirstName      string    `json:"first_name" validate:"required,notblank,max=255"`
	LastName       string    `json:"last_name" validate:"required,notblank,max=255"`
	Gender         string    `json:"gender" validate:"required,oneof=male female other unspecified"`
	BirthDate      time.Time `json:"birth_date" validate:"required,past"`
	EducationLevel string    `json:"education_level" validate:"required,oneof=primary secondary vocational bachelor master doctorate"`
	Email          string    `json:"email" validate:"required,emailshape"`
	Phone          string    `json:"phone" validate:"required,digits"`
}

// NewProfile returns a Profile holding the initial defaults.
func NewProfile() Profile {
	return Profile{
		NamePrefix:     NamePrefixes[0],
		Gender:         Genders[0],
		EducationLevel: EducationLevels[0],
	}
}

func (p *Profile) Clean() {
	p.NamePrefix = core.CleanString(p.NamePrefix, true /* lower */)
	p.FirstName = core.CleanString(p.FirstName)
	p.LastName = core.CleanString(p.LastName)
	p.Gender = core.CleanString(p.Gender, true /* lower */)
	p.EducationLevel = core.CleanString(p.EducationLevel, true /* lower */)
	p.Email = core.CleanString(p.Email, true /* lower */)
	p.Phone = core.CleanString(p.Phone)
	p.BirthDate = core.TruncateDate(p.BirthDate)
}

// FullName returns "prefix first last" with the prefix capitalised.
func (p Profile) FullName() string {
	name := p.FirstName
	if p.LastName != "" {
		name += " " + p.LastName
	}
	if p.NamePrefix != "" {
		return prefixTitle(p.NamePrefix) + " " + name
	}
	return name
}

func prefixTitle(prefix string) string {
	switch prefix {
	case "mr":
		return "Mr."
	case "mrs":
		return "Mrs."
	case "ms":
		return "Ms."
	case "miss":
		return "Miss"
	case "dr":
		return "Dr."
	case "prof":
		return "Prof."
	default:
		return prefix
	}
}

func (p Profile) MarshalJSON() ([]byte, error) {
	type alias Profile
	return json.Marshal(struct {
		alias
		BirthDate core.Date `json:"birth_date"`
	}{alias(p), core.NewDate(p.BirthDate)})
}

func (p *Profile) UnmarshalJSON(data []byte) error {
	type alias Profile
	aux := struct {
		*alias
		BirthDate core.Date `json:"birth_date"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.BirthDate = aux.BirthDate.Time
	return nil
}
