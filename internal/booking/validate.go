package booking

import (
	"regexp"
	"strings"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// ValidationError carries a message that can be shown to the client as is.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

const (
	PhoneErrorText = "❌ Некорректный номер телефона.\n\n" +
		"Пожалуйста, введите номер в одном из форматов:\n" +
		"• +375291234567\n" +
		"• 375291234567\n" +
		"• 80291234567"
	NameErrorText = "❌ Некорректное ФИО.\n\n" +
		"Пожалуйста, введите полное имя (минимум имя и фамилия).\n" +
		"Например: Иванов Иван"
)

var (
	phoneJunk     = regexp.MustCompile(`[\s\-()]`)
	phoneFull     = regexp.MustCompile(`^\+375\d{9}$`)
	phoneNoPlus   = regexp.MustCompile(`^375\d{9}$`)
	phoneDomestic = regexp.MustCompile(`^80\d{9}$`)
	nameWord      = regexp.MustCompile(`^[А-ЯЁа-яёA-Za-z-]+$`)
)

// NormalizePhone accepts Belarusian numbers in +375, 375 or 80 form and
// returns them as +375XXXXXXXXX.
func NormalizePhone(phone string) (string, error) {
	clean := phoneJunk.ReplaceAllString(phone, "")
	switch {
	case phoneFull.MatchString(clean):
		return clean, nil
	case phoneNoPlus.MatchString(clean):
		return "+" + clean, nil
	case phoneDomestic.MatchString(clean):
		return "+375" + clean[2:], nil
	}
	return "", &ValidationError{Field: "phone", Message: PhoneErrorText}
}

// NormalizeFullName checks that the name has at least two words of letters
// and hyphens and collapses whitespace.
func NormalizeFullName(name string) (string, error) {
	words := strings.Fields(name)
	if len(words) < 2 {
		return "", &ValidationError{Field: "full_name", Message: NameErrorText}
	}
	for _, w := range words {
		if !nameWord.MatchString(w) {
			return "", &ValidationError{Field: "full_name", Message: NameErrorText}
		}
	}
	return strings.Join(words, " "), nil
}

// ParseDate reads a date typed by a user.
func ParseDate(input string, loc *time.Location) (time.Time, error) {
	formats := []string{
		"02.01.2006",
		"2.1.2006",
		"02-01-2006",
		"2006-01-02",
		"02/01/2006",
	}

	input = strings.TrimSpace(input)

	for _, format := range formats {
		if t, err := time.ParseInLocation(format, input, loc); err == nil {
			return t, nil
		}
	}

	return time.Time{}, &ValidationError{
		Field:   "date",
		Message: "Неверный формат даты. Используйте ДД.ММ.ГГГГ.",
	}
}

// ParseTimeOn reads HH:MM and places it on date.
func ParseTimeOn(date time.Time, input string) (time.Time, error) {
	tod, err := model.ParseTimeOfDay(strings.TrimSpace(input))
	if err != nil {
		return time.Time{}, &ValidationError{
			Field:   "time",
			Message: "Неверный формат времени. Используйте ЧЧ:ММ (например, 14:30).",
		}
	}
	return tod.On(date), nil
}
