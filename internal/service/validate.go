package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/sakif/foodgram/internal/apperror"
)

// Upper bounds enforced by the struct tags below; keep them in sync.
const (
	MaxRecipeNameLength = 256
	MaxCookingTime      = 32000
	MaxAmount           = 32000
)

// Messages returned for payload problems. They mirror what the web client
// already displays.
const (
	msgRequired   = "This field is required."
	msgNull       = "This field may not be null."
	msgBlank      = "This field may not be blank."
	msgEmptyList  = "This list may not be empty."
	msgDuplicates = "Cannot contain duplicates."
)

// Mode tells ValidateRecipe which fields must be present.
type Mode int

const (
	ModeCreate Mode = iota
	ModeUpdate
)

// IngredientInput is one entry of a recipe's ingredient list.
type IngredientInput struct {
	ID     int64 `json:"id"     validate:"gte=1"`
	Amount int   `json:"amount" validate:"gte=1,lte=32000"`
}

// RecipeInput is a decoded recipe payload. A nil pointer (or a nil
// Ingredients slice) means the field was absent from the request body,
// or sent as null, which is not the same as present-but-empty.
type RecipeInput struct {
	Ingredients []IngredientInput `json:"ingredients"`
	Name        *string           `json:"name"`
	Text        *string           `json:"text"`
	Image       *string           `json:"image"`
	CookingTime *int              `json:"cooking_time"`

	// nulls holds the JSON names of fields sent as an explicit null.
	nulls map[string]bool
}

// UnmarshalJSON decodes the payload and remembers which fields were null.
func (in *RecipeInput) UnmarshalJSON(data []byte) error {
	type plain RecipeInput
	if err := json.Unmarshal(data, (*plain)(in)); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for name, raw := range fields {
		if string(raw) == "null" {
			if in.nulls == nil {
				in.nulls = map[string]bool{}
			}
			in.nulls[name] = true
		}
	}
	return nil
}

// recipeFields is what the struct-tag rules run against once every
// required field is known to be present.
type recipeFields struct {
	Name        string            `json:"name"         validate:"min=1,max=256"`
	Text        string            `json:"text"         validate:"min=1"`
	CookingTime int               `json:"cooking_time" validate:"gte=1,lte=32000"`
	Ingredients []IngredientInput `json:"ingredients"  validate:"dive"`
}

// RegisterInput is the sign-up payload.
type RegisterInput struct {
	Email     string `json:"email"      validate:"required,email,max=254"`
	Username  string `json:"username"   validate:"required,max=150,username"`
	FirstName string `json:"first_name" validate:"required,max=150"`
	LastName  string `json:"last_name"  validate:"required,max=150"`
	Password  string `json:"password"   validate:"required"`
}

// SetPasswordInput is the payload of the set_password endpoint.
type SetPasswordInput struct {
	NewPassword     string `json:"new_password"     validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

// LoginInput is the token login payload.
type LoginInput struct {
	Email    string `json:"email"    validate:"required"`
	Password string `json:"password" validate:"required"`
}

var usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)

// validate is safe for concurrent use and caches struct metadata, so one
// instance serves the whole process.
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names so error keys match the payload.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ValidateRecipe checks a recipe payload without touching storage.
//
// The rules run in stages and the first stage that finds a problem wins:
//  1. required fields (ingredients, name, text, cooking_time; image too on create)
//  2. list shape: the ingredient list must be non-empty and free of duplicate ids
//  3. value ranges from the struct tags
//
// Whether the ingredient ids exist is checked by RecipeService, which needs
// the database for it.
func ValidateRecipe(in RecipeInput, mode Mode) error {
	missing := map[string]string{}
	need := func(field string, present, required bool) {
		switch {
		case in.nulls[field]:
			missing[field] = msgNull
		case !present && required:
			missing[field] = msgRequired
		}
	}
	need("ingredients", in.Ingredients != nil, true)
	need("name", in.Name != nil, true)
	need("text", in.Text != nil, true)
	need("cooking_time", in.CookingTime != nil, true)
	need("image", in.Image != nil, mode == ModeCreate)
	if len(missing) > 0 {
		return apperror.Invalid(missing)
	}

	problems := map[string]string{}

	if len(in.Ingredients) == 0 {
		problems["ingredients"] = msgEmptyList
	} else if hasDuplicateIDs(in.Ingredients) {
		problems["ingredients"] = msgDuplicates
	}

	if in.Image != nil && strings.TrimSpace(*in.Image) == "" {
		problems["image"] = msgBlank
	}

	fields := recipeFields{
		Name:        strings.TrimSpace(*in.Name),
		Text:        strings.TrimSpace(*in.Text),
		CookingTime: *in.CookingTime,
		Ingredients: in.Ingredients,
	}
	for field, msg := range structErrors(fields) {
		if _, seen := problems[field]; !seen {
			problems[field] = msg
		}
	}

	if len(problems) > 0 {
		return apperror.Invalid(problems)
	}
	return nil
}

// ValidateStruct runs the tag rules of a payload struct and returns a
// field-keyed validation error, or nil.
func ValidateStruct(payload any) error {
	if problems := structErrors(payload); len(problems) > 0 {
		return apperror.Invalid(problems)
	}
	return nil
}

func hasDuplicateIDs(items []IngredientInput) bool {
	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, dup := seen[item.ID]; dup {
			return true
		}
		seen[item.ID] = struct{}{}
	}
	return false
}

// structErrors maps validator failures to one message per top-level field.
// A failure inside a list element is reported under the list's name.
func structErrors(payload any) map[string]string {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return map[string]string{"non_field_errors": err.Error()}
	}

	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := topLevelField(fe.Namespace())
		if _, seen := out[field]; seen {
			continue
		}
		out[field] = fieldMessage(fe)
	}
	return out
}

// topLevelField turns "recipeFields.ingredients[1].amount" into "ingredients".
func topLevelField(namespace string) string {
	_, rest, ok := strings.Cut(namespace, ".")
	if !ok {
		return namespace
	}
	if i := strings.IndexAny(rest, ".["); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

func fieldMessage(fe validator.FieldError) string {
	isString := fe.Kind() == reflect.String
	switch fe.Tag() {
	case "required":
		return msgRequired
	case "min":
		if isString && fe.Param() == "1" {
			return msgBlank
		}
		if isString {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max":
		if isString {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "lte":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "email":
		return "Enter a valid email address."
	case "username":
		return "Enter a valid username. This value may contain only letters, numbers, and @/./+/-/_ characters."
	default:
		return "Invalid value."
	}
}
