// Package validation checks checkout form fields before anything is sent to
// the server. Rules are pure and synchronous.
package validation

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
)

const (
	FieldEmail           = "email"
	FieldUserName        = "user_name"
	FieldPhone           = "phone"
	FieldMessage         = "message"
	FieldExperienceLevel = "experience_level"
	FieldContactMethod   = "contact_method"
)

const (
	CodeEmailRequired           = "EMAIL_REQUIRED"
	CodeEmailInvalid            = "EMAIL_INVALID"
	CodeNameRequired            = "NAME_REQUIRED"
	CodeNameTooShort            = "NAME_TOO_SHORT"
	CodeNameTooLong             = "NAME_TOO_LONG"
	CodeNameInvalid             = "NAME_INVALID"
	CodePhoneInvalid            = "PHONE_INVALID"
	CodeMessageTooLong          = "MESSAGE_TOO_LONG"
	CodeExperienceLevelRequired = "EXPERIENCE_LEVEL_REQUIRED"
	CodeExperienceLevelInvalid  = "EXPERIENCE_LEVEL_INVALID"
	CodeContactMethodInvalid    = "CONTACT_METHOD_INVALID"
	CodeFieldUnknown            = "FIELD_UNKNOWN"
	CodeItemTypeInvalid         = "ITEM_TYPE_INVALID"
	CodeValidationFailed        = "VALIDATION_FAILED"
)

const (
	nameMinLen    = 2
	nameMaxLen    = 100
	phoneMinDigit = 10
	phoneMaxDigit = 15
	messageMaxLen = 1000
)

var (
	ExperienceLevels = []string{"beginner", "intermediate", "advanced"}
	ContactMethods   = []string{"email", "phone", "whatsapp"}
)

var nameRe = regexp.MustCompile(`^\p{L}[\p{L} .'\-]*$`)

type Result struct {
	Valid    bool
	Message  string
	Code     string
	Failures []Failure
}

type Failure struct {
	Field   string
	Code    string
	Message string
}

func valid() Result { return Result{Valid: true} }

func invalid(code, msg string) Result {
	return Result{Message: msg, Code: code}
}

// Err returns nil for a valid result and an *Error otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &Error{Code: r.Code, Message: r.Message, Failures: r.Failures}
}

// Error is a form that failed validation. Its message is meant for buyers.
type Error struct {
	Code     string
	Message  string
	Failures []Failure
}

func (e *Error) Error() string { return e.Message }

// Context carries what a rule needs to know about the submission it belongs
// to, such as which fields the item type makes mandatory.
type Context struct {
	ItemType string
}

func (c Context) requires(field string) bool {
	for _, f := range rules[c.ItemType].required {
		if f == field {
			return true
		}
	}
	return false
}

type ruleSet struct {
	required []string
	fields   []string
}

var rules = map[string]ruleSet{
	"course": {
		required: []string{FieldEmail},
		fields:   []string{FieldEmail, FieldUserName, FieldPhone},
	},
	"workshop": {
		required: []string{FieldEmail, FieldUserName, FieldExperienceLevel},
		fields:   []string{FieldEmail, FieldUserName, FieldPhone, FieldExperienceLevel},
	},
	"service": {
		required: []string{FieldEmail, FieldUserName},
		fields:   []string{FieldEmail, FieldUserName, FieldPhone, FieldMessage, FieldContactMethod},
	},
}

// Form is the checkout form as typed by the buyer.
type Form struct {
	ItemType        string
	Email           string
	UserName        string
	Phone           string
	Message         string
	ExperienceLevel string
	ContactMethod   string
}

func (f Form) value(field string) string {
	switch field {
	case FieldEmail:
		return f.Email
	case FieldUserName:
		return f.UserName
	case FieldPhone:
		return f.Phone
	case FieldMessage:
		return f.Message
	case FieldExperienceLevel:
		return f.ExperienceLevel
	case FieldContactMethod:
		return f.ContactMethod
	}
	return ""
}

type Validator struct {
	v *validator.Validate
}

func New() *Validator {
	return &Validator{v: validator.New()}
}

// Validate runs the rule for a single field.
func (vl *Validator) Validate(field, value string, ctx Context) Result {
	value = strings.TrimSpace(value)

	switch field {
	case FieldEmail:
		return vl.email(value)
	case FieldUserName, "name":
		return userName(value, ctx.requires(FieldUserName))
	case FieldPhone:
		return phone(value, ctx.requires(FieldPhone))
	case FieldMessage:
		return message(value)
	case FieldExperienceLevel:
		return oneOf(value, ExperienceLevels, ctx.requires(FieldExperienceLevel),
			CodeExperienceLevelRequired, CodeExperienceLevelInvalid, "Please choose your experience level")
	case FieldContactMethod:
		return oneOf(value, ContactMethods, ctx.requires(FieldContactMethod),
			CodeContactMethodInvalid, CodeContactMethodInvalid, "Please choose email, phone or WhatsApp as contact method")
	}

	return invalid(CodeFieldUnknown, "Unknown field "+field)
}

// ValidatePaymentContext runs every rule that applies to the form's item type
// and joins the failures into one message.
func (vl *Validator) ValidatePaymentContext(f Form) Result {
	rs, ok := rules[f.ItemType]
	if !ok {
		return invalid(CodeItemTypeInvalid, "Please choose a course, workshop or service")
	}

	ctx := Context{ItemType: f.ItemType}

	var failures []Failure
	for _, field := range rs.fields {
		r := vl.Validate(field, f.value(field), ctx)
		if !r.Valid {
			failures = append(failures, Failure{Field: field, Code: r.Code, Message: r.Message})
		}
	}

	if len(failures) == 0 {
		return valid()
	}

	msgs := make([]string, len(failures))
	for i, fl := range failures {
		msgs[i] = fl.Message
	}

	code := failures[0].Code
	if len(failures) > 1 {
		code = CodeValidationFailed
	}

	return Result{
		Message:  strings.Join(msgs, "; "),
		Code:     code,
		Failures: failures,
	}
}

func (vl *Validator) email(value string) Result {
	if value == "" {
		return invalid(CodeEmailRequired, "Email is required")
	}

	if err := vl.v.Var(value, "email"); err != nil {
		return invalid(CodeEmailInvalid, "Please enter a valid email address")
	}

	at := strings.LastIndexByte(value, '@')
	domain := value[at+1:]
	if !strings.Contains(domain, ".") || strings.HasPrefix(domain, ".") || strings.HasSuffix(domain, ".") {
		return invalid(CodeEmailInvalid, "Please enter a valid email address")
	}

	return valid()
}

func userName(value string, required bool) Result {
	if value == "" {
		if required {
			return invalid(CodeNameRequired, "Name is required")
		}
		return valid()
	}

	n := utf8.RuneCountInString(value)
	switch {
	case n < nameMinLen:
		return invalid(CodeNameTooShort, "Name must be at least 2 characters")
	case n > nameMaxLen:
		return invalid(CodeNameTooLong, "Name must be at most 100 characters")
	case !nameRe.MatchString(value):
		return invalid(CodeNameInvalid, "Name may only contain letters, spaces, dots, apostrophes and hyphens")
	}

	return valid()
}

func phone(value string, required bool) Result {
	if value == "" {
		if required {
			return invalid(CodePhoneInvalid, "Phone number is required")
		}
		return valid()
	}

	digits := 0
	for i, r := range value {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return invalid(CodePhoneInvalid, "Please enter a valid phone number")
		}
	}

	if digits < phoneMinDigit || digits > phoneMaxDigit {
		return invalid(CodePhoneInvalid, "Please enter a valid phone number with 10 to 15 digits")
	}

	return valid()
}

func message(value string) Result {
	if utf8.RuneCountInString(value) > messageMaxLen {
		return invalid(CodeMessageTooLong, "Message must be at most 1000 characters")
	}
	return valid()
}

func oneOf(value string, allowed []string, required bool, requiredCode, invalidCode, msg string) Result {
	if value == "" {
		if required {
			return invalid(requiredCode, msg)
		}
		return valid()
	}

	for _, a := range allowed {
		if strings.EqualFold(value, a) {
			return valid()
		}
	}
	return invalid(invalidCode, msg)
}
