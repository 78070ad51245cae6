package service

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/foodgram/internal/apperror"
)

func validRecipeInput() RecipeInput {
	return RecipeInput{
		Ingredients: []IngredientInput{{ID: 1, Amount: 200}, {ID: 2, Amount: 2}},
		Name:        ptr("Pancakes"),
		Text:        ptr("Mix and fry."),
		Image:       ptr("data:image/png;base64,AAAA"),
		CookingTime: ptr(15),
	}
}

func TestValidateRecipe(t *testing.T) {
	tests := []struct {
		name      string
		mode      Mode
		mutate    func(in *RecipeInput)
		wantField string
		wantMsg   string
	}{
		{"valid create", ModeCreate, func(in *RecipeInput) {}, "", ""},
		{"valid update without image", ModeUpdate, func(in *RecipeInput) { in.Image = nil }, "", ""},
		{"create without image", ModeCreate, func(in *RecipeInput) { in.Image = nil }, "image", msgRequired},
		{"update without ingredients", ModeUpdate, func(in *RecipeInput) { in.Ingredients = nil }, "ingredients", msgRequired},
		{"update without name", ModeUpdate, func(in *RecipeInput) { in.Name = nil }, "name", msgRequired},
		{"update without text", ModeUpdate, func(in *RecipeInput) { in.Text = nil }, "text", msgRequired},
		{"update without cooking time", ModeUpdate, func(in *RecipeInput) { in.CookingTime = nil }, "cooking_time", msgRequired},
		{"empty ingredient list", ModeCreate, func(in *RecipeInput) { in.Ingredients = []IngredientInput{} }, "ingredients", msgEmptyList},
		{"duplicate ingredient", ModeCreate, func(in *RecipeInput) {
			in.Ingredients = []IngredientInput{{ID: 1, Amount: 1}, {ID: 1, Amount: 5}}
		}, "ingredients", msgDuplicates},
		{"blank name", ModeCreate, func(in *RecipeInput) { in.Name = ptr("   ") }, "name", msgBlank},
		{"name too long", ModeCreate, func(in *RecipeInput) {
			in.Name = ptr(strings.Repeat("n", MaxRecipeNameLength+1))
		}, "name", "Ensure this field has no more than 256 characters."},
		{"cooking time zero", ModeCreate, func(in *RecipeInput) { in.CookingTime = ptr(0) }, "cooking_time",
			"Ensure this value is greater than or equal to 1."},
		{"cooking time too large", ModeCreate, func(in *RecipeInput) { in.CookingTime = ptr(MaxCookingTime + 1) }, "cooking_time",
			"Ensure this value is less than or equal to 32000."},
		{"amount zero", ModeCreate, func(in *RecipeInput) { in.Ingredients[1].Amount = 0 }, "ingredients",
			"Ensure this value is greater than or equal to 1."},
		{"ingredient id zero", ModeCreate, func(in *RecipeInput) { in.Ingredients[0].ID = 0 }, "ingredients",
			"Ensure this value is greater than or equal to 1."},
		{"blank image", ModeCreate, func(in *RecipeInput) { in.Image = ptr("") }, "image", msgBlank},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validRecipeInput()
			tt.mutate(&in)

			err := ValidateRecipe(in, tt.mode)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			appErr := requireKind(t, err, apperror.ErrValidation)
			assert.Equal(t, tt.wantMsg, appErr.Fields[tt.wantField], "fields = %v", appErr.Fields)
		})
	}
}

func TestValidateRecipe_NullIsNotMissing(t *testing.T) {
	tests := []struct {
		name string
		body string
		mode Mode
		want map[string]string
	}{
		{
			name: "null ingredients",
			body: `{"ingredients":null,"name":"Soup","text":"Boil.","cooking_time":5}`,
			mode: ModeUpdate,
			want: map[string]string{"ingredients": msgNull},
		},
		{
			name: "null image on update",
			body: `{"ingredients":[{"id":1,"amount":1}],"name":"Soup","text":"Boil.","cooking_time":5,"image":null}`,
			mode: ModeUpdate,
			want: map[string]string{"image": msgNull},
		},
		{
			name: "null next to absent",
			body: `{"ingredients":[{"id":1,"amount":1}],"name":null,"cooking_time":5}`,
			mode: ModeCreate,
			want: map[string]string{"name": msgNull, "text": msgRequired, "image": msgRequired},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var in RecipeInput
			require.NoError(t, json.Unmarshal([]byte(tt.body), &in))

			appErr := requireKind(t, ValidateRecipe(in, tt.mode), apperror.ErrValidation)
			assert.Equal(t, tt.want, appErr.Fields)
		})
	}
}

func TestValidateRecipe_RequiredReportsEveryMissingField(t *testing.T) {
	err := ValidateRecipe(RecipeInput{}, ModeUpdate)

	appErr := requireKind(t, err, apperror.ErrValidation)
	assert.Equal(t, map[string]string{
		"ingredients":  msgRequired,
		"name":         msgRequired,
		"text":         msgRequired,
		"cooking_time": msgRequired,
	}, appErr.Fields)
}

func TestValidateRecipe_DuplicatesWinOverRangeErrors(t *testing.T) {
	in := validRecipeInput()
	in.Ingredients = []IngredientInput{{ID: 3, Amount: 0}, {ID: 3, Amount: 1}}

	appErr := requireKind(t, ValidateRecipe(in, ModeCreate), apperror.ErrValidation)
	assert.Equal(t, msgDuplicates, appErr.Fields["ingredients"])
}

func TestValidateStruct_Register(t *testing.T) {
	valid := RegisterInput{
		Email:     "vasya@example.com",
		Username:  "vasya.pupkin",
		FirstName: "Vasya",
		LastName:  "Pupkin",
		Password:  "s3cret-pass",
	}

	tests := []struct {
		name      string
		mutate    func(in *RegisterInput)
		wantField string
	}{
		{"valid", func(in *RegisterInput) {}, ""},
		{"bad email", func(in *RegisterInput) { in.Email = "not-an-email" }, "email"},
		{"missing email", func(in *RegisterInput) { in.Email = "" }, "email"},
		{"username with space", func(in *RegisterInput) { in.Username = "vasya pupkin" }, "username"},
		{"username too long", func(in *RegisterInput) { in.Username = strings.Repeat("u", 151) }, "username"},
		{"missing first name", func(in *RegisterInput) { in.FirstName = "" }, "first_name"},
		{"missing password", func(in *RegisterInput) { in.Password = "" }, "password"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)

			err := ValidateStruct(in)
			if tt.wantField == "" {
				assert.NoError(t, err)
				return
			}
			appErr := requireKind(t, err, apperror.ErrValidation)
			require.Contains(t, appErr.Fields, tt.wantField)
			assert.Len(t, appErr.Fields, 1)
		})
	}
}

func TestTopLevelField(t *testing.T) {
	assert.Equal(t, "ingredients", topLevelField("recipeFields.ingredients[1].amount"))
	assert.Equal(t, "name", topLevelField("recipeFields.name"))
	assert.Equal(t, "email", topLevelField("email"))
}
