package booking

import (
	"strings"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

const maxCommentLength = 500

// Draft is a booking being assembled by a dialog.
type Draft struct {
	OwnerID         *int64
	Service         string
	Restricted      bool
	Date            time.Time
	Start           time.Time
	DurationMinutes int
	FullName        string
	Phone           string
	Comment         string
	CreatedByDoctor bool
}

// Validate normalizes name and phone in place and checks the remaining fields.
func (d *Draft) Validate() error {
	if strings.TrimSpace(d.Service) == "" {
		return &ValidationError{Field: "service", Message: "Выберите услугу."}
	}
	if d.Start.IsZero() {
		return &ValidationError{Field: "start", Message: "Выберите дату и время приёма."}
	}
	if d.DurationMinutes <= 0 {
		return &ValidationError{Field: "duration", Message: "Не указана продолжительность услуги."}
	}

	name, err := NormalizeFullName(d.FullName)
	if err != nil {
		return err
	}
	d.FullName = name

	phone, err := NormalizePhone(d.Phone)
	if err != nil {
		return err
	}
	d.Phone = phone

	d.Comment = strings.TrimSpace(d.Comment)
	if len([]rune(d.Comment)) > maxCommentLength {
		return &ValidationError{Field: "comment", Message: "Комментарий слишком длинный (максимум 500 символов)."}
	}
	return nil
}

// Booking converts the draft into an entity ready to store.
func (d *Draft) Booking() *model.Booking {
	return &model.Booking{
		OwnerID:         d.OwnerID,
		FullName:        d.FullName,
		Phone:           d.Phone,
		Start:           d.Start,
		DurationMinutes: d.DurationMinutes,
		Service:         d.Service,
		Comment:         d.Comment,
		CreatedByDoctor: d.CreatedByDoctor,
	}
}

// OrderDraft is a supplement order being assembled by a dialog.
type OrderDraft struct {
	OwnerID  *int64
	FullName string
	Phone    string
	Products string
	Comment  string
}

// Validate normalizes name and phone in place and requires a product list.
func (d *OrderDraft) Validate() error {
	name, err := NormalizeFullName(d.FullName)
	if err != nil {
		return err
	}
	d.FullName = name

	phone, err := NormalizePhone(d.Phone)
	if err != nil {
		return err
	}
	d.Phone = phone

	d.Products = strings.TrimSpace(d.Products)
	if d.Products == "" {
		return &ValidationError{Field: "products", Message: "Укажите, какие продукты вы хотите заказать."}
	}
	d.Comment = strings.TrimSpace(d.Comment)
	return nil
}

// Order converts the draft into an entity ready to store.
func (d *OrderDraft) Order() *model.Order {
	return &model.Order{
		OwnerID:  d.OwnerID,
		FullName: d.FullName,
		Phone:    d.Phone,
		Products: d.Products,
		Comment:  d.Comment,
	}
}
