package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

var bookingColumns = []string{
	"ID", "Дата", "Время", "Услуга", "Длительность, мин", "ФИО", "Телефон",
	"Комментарий", "Статус", "Создано врачом", "Создано",
}

var orderColumns = []string{"ID", "ФИО", "Телефон", "Продукты", "Комментарий", "Статус", "Создан"}

var statusTitles = map[model.BookingStatus]string{
	model.BookingActive:    "Активна",
	model.BookingCancelled: "Отменена",
	model.BookingCompleted: "Завершена",
}

var orderStatusTitles = map[model.OrderStatus]string{
	model.OrderPending:   "Новый",
	model.OrderProcessed: "Обработан",
}

var monthNames = [...]string{
	"Январь", "Февраль", "Март", "Апрель", "Май", "Июнь",
	"Июль", "Август", "Сентябрь", "Октябрь", "Ноябрь", "Декабрь",
}

// Filename names an export covering [from, to].
func Filename(from, to time.Time) string {
	if from.Year() == to.Year() && from.Month() == to.Month() {
		return fmt.Sprintf("Записи_%s_%d.xlsx", monthNames[from.Month()-1], from.Year())
	}
	return fmt.Sprintf("Записи_%s-%s.xlsx", from.Format("02.01.2006"), to.Format("02.01.2006"))
}

func yesNo(v bool) string {
	if v {
		return "Да"
	}
	return "Нет"
}

// Workbook renders bookings and, when present, orders into an xlsx file.
func Workbook(bookings []model.Booking, orders []model.Order) ([]byte, error) {
	w := NewWriter()
	defer w.Close()

	if err := w.AddSheet("Записи"); err != nil {
		return nil, err
	}
	if err := w.WriteHeader(bookingColumns); err != nil {
		return nil, err
	}
	for _, b := range bookings {
		row := []any{
			b.ID,
			b.Start.Format("02.01.2006"),
			b.Start.Format("15:04"),
			b.Service,
			b.DurationMinutes,
			b.FullName,
			b.Phone,
			b.Comment,
			statusTitles[b.Status],
			yesNo(b.CreatedByDoctor),
			b.CreatedAt.Format("02.01.2006 15:04"),
		}
		if err := w.WriteRow(row); err != nil {
			return nil, fmt.Errorf("write booking %d: %w", b.ID, err)
		}
	}
	if err := w.FitColumns(); err != nil {
		return nil, err
	}

	if len(orders) > 0 {
		if err := w.AddSheet("Заказы БАДов"); err != nil {
			return nil, err
		}
		if err := w.WriteHeader(orderColumns); err != nil {
			return nil, err
		}
		for _, o := range orders {
			row := []any{
				o.ID, o.FullName, o.Phone, o.Products, o.Comment,
				orderStatusTitles[o.Status], o.CreatedAt.Format("02.01.2006 15:04"),
			}
			if err := w.WriteRow(row); err != nil {
				return nil, fmt.Errorf("write order %d: %w", o.ID, err)
			}
		}
		if err := w.FitColumns(); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := w.Save(&buf); err != nil {
		return nil, fmt.Errorf("save workbook: %w", err)
	}
	return buf.Bytes(), nil
}
