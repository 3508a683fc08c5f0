package hafalan

import (
	"strings"

	"github.com/almuhajirin/hafalan-hub/internal/domain/shared"
)

// Gender - пол сантри (L - laki-laki, P - perempuan).
type Gender string

const (
	GenderMale   Gender = "L"
	GenderFemale Gender = "P"
)

// IsValid проверяет значение пола.
func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

// Santri - запись мастер-списка учеников. Имя служит ключом.
type Santri struct {
	Name   string `json:"nama"`
	Gender Gender `json:"gender"`
}

// NewSantri создаёт сантри с проверкой имени и пола.
func NewSantri(name string, gender Gender) (Santri, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Santri{}, shared.NewDomainError("santri", "Create", shared.ErrEmptyValue, "name cannot be empty")
	}
	gender = Gender(strings.ToUpper(strings.TrimSpace(string(gender))))
	if !gender.IsValid() {
		return Santri{}, shared.NewDomainError("santri", "Create", shared.ErrInvalidInput, "gender must be L or P")
	}
	return Santri{Name: name, Gender: gender}, nil
}
