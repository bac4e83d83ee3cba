package bot

import (
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
)

const (
	cbNoop     = "noop"
	dateLayout = "2006-01-02"
	pageSize   = 8
)

func button(text, data string) tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardButtonData(text, data)
}

func markup(rows ...[]tgbotapi.InlineKeyboardButton) *tgbotapi.InlineKeyboardMarkup {
	m := tgbotapi.NewInlineKeyboardMarkup(rows...)
	return &m
}

func mainMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup(
		tgbotapi.NewInlineKeyboardRow(button("🦷 Стоматология", "menu:dentistry")),
		tgbotapi.NewInlineKeyboardRow(button("💊 Нутрициология", "menu:nutrition")),
		tgbotapi.NewInlineKeyboardRow(button("📦 Заказать БАДы", "menu:order")),
		tgbotapi.NewInlineKeyboardRow(button("📋 Мои записи", "menu:my")),
		tgbotapi.NewInlineKeyboardRow(button("📞 Контакты", "menu:contacts")),
	)
}

func backToMainKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup(tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад в меню", "menu:main")))
}

func cancelRow() []tgbotapi.InlineKeyboardButton {
	return tgbotapi.NewInlineKeyboardRow(button("❌ Отмена", "book:cancel"))
}

// servicesKeyboard lists catalog entries of cat, or all of them when cat is
// empty. Callback data carries the catalog index because service names can
// exceed Telegram's 64-byte limit.
func servicesKeyboard(catalog model.Catalog, cat model.ServiceCategory) *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for i, s := range catalog {
		if cat != "" && s.Category != cat {
			continue
		}
		label := fmt.Sprintf("%s (%s)", s.Name, notify.FormatDuration(s.DurationMinutes))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(label, "svc:"+strconv.Itoa(i))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад в меню", "menu:main")))
	return markup(rows...)
}

// CalendarKeyboard builds a Monday-first month grid. Days missing from
// available are shown as "·" and cannot be pressed.
func CalendarKeyboard(month time.Time, available map[string]bool, hasPrev, hasNext bool) tgbotapi.InlineKeyboardMarkup {
	first := time.Date(month.Year(), month.Month(), 1, 0, 0, 0, 0, month.Location())
	offset := (int(first.Weekday()) + 6) % 7
	daysInMonth := first.AddDate(0, 1, -1).Day()

	prev, next := button(" ", cbNoop), button(" ", cbNoop)
	if hasPrev {
		prev = button("◀️", "cal:"+first.AddDate(0, -1, 0).Format("2006-01"))
	}
	if hasNext {
		next = button("▶️", "cal:"+first.AddDate(0, 1, 0).Format("2006-01"))
	}

	rows := [][]tgbotapi.InlineKeyboardButton{
		{prev, button(notify.MonthTitle(first), cbNoop), next},
	}
	header := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for _, d := range []string{"Пн", "Вт", "Ср", "Чт", "Пт", "Сб", "Вс"} {
		header = append(header, button(d, cbNoop))
	}
	rows = append(rows, header)

	row := make([]tgbotapi.InlineKeyboardButton, 0, 7)
	for i := 0; i < offset; i++ {
		row = append(row, button(" ", cbNoop))
	}
	for day := 1; day <= daysInMonth; day++ {
		date := first.AddDate(0, 0, day-1).Format(dateLayout)
		if available[date] {
			row = append(row, button(strconv.Itoa(day), "date:"+date))
		} else {
			row = append(row, button("·", cbNoop))
		}
		if len(row) == 7 {
			rows = append(rows, row)
			row = make([]tgbotapi.InlineKeyboardButton, 0, 7)
		}
	}
	if len(row) > 0 {
		for len(row) < 7 {
			row = append(row, button(" ", cbNoop))
		}
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("⬅️ Назад", "book:back_service"),
		button("❌ Отмена", "book:cancel"),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

// TimeSlotsKeyboard lays out free start times three per row.
func TimeSlotsKeyboard(slots []time.Time) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(slots)/3+2)
	var current []tgbotapi.InlineKeyboardButton
	for _, s := range slots {
		current = append(current, button(s.Format("15:04"), "time:"+s.Format("1504")))
		if len(current) == 3 {
			rows = append(rows, current)
			current = nil
		}
	}
	if len(current) > 0 {
		rows = append(rows, current)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("⬅️ Назад к дате", "book:back_date"),
		button("❌ Отмена", "book:cancel"),
	))
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}

func skipKeyboard(data string) *tgbotapi.InlineKeyboardMarkup {
	return markup(
		tgbotapi.NewInlineKeyboardRow(button("➡️ Пропустить", data)),
		cancelRow(),
	)
}

func confirmKeyboard(confirm, back string) *tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button("✅ Подтвердить", confirm), button("❌ Отмена", "book:cancel")),
	}
	if back != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", back)))
	}
	return markup(rows...)
}

// pageItem is one selectable line of a paginated list.
type pageItem struct {
	Label string
	Data  string
}

// paginate renders one page of items with prev/next navigation.
// pagePrefix is followed by the page number in navigation callbacks.
func paginate(items []pageItem, page int, pagePrefix, back string) (*tgbotapi.InlineKeyboardMarkup, string) {
	pages := (len(items) + pageSize - 1) / pageSize
	if pages == 0 {
		pages = 1
	}
	if page < 0 {
		page = 0
	}
	if page >= pages {
		page = pages - 1
	}
	start := page * pageSize
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, it := range items[start:end] {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(it.Label, it.Data)))
	}

	var nav []tgbotapi.InlineKeyboardButton
	if page > 0 {
		nav = append(nav, button("◀️ Назад", fmt.Sprintf("%s%d", pagePrefix, page-1)))
	}
	if end < len(items) {
		nav = append(nav, button("Вперёд ▶️", fmt.Sprintf("%s%d", pagePrefix, page+1)))
	}
	if len(nav) > 0 {
		rows = append(rows, nav)
	}
	if back != "" {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", back)))
	}
	return markup(rows...), fmt.Sprintf("Страница %d из %d", page+1, pages)
}

func adminMenuKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup(
		tgbotapi.NewInlineKeyboardRow(button("📅 Записи на сегодня", "adm:today"), button("🔎 Записи на дату", "adm:date")),
		tgbotapi.NewInlineKeyboardRow(button("➕ Создать запись", "adm:book")),
		tgbotapi.NewInlineKeyboardRow(button("🕐 Расписание", "adm:schedule")),
		tgbotapi.NewInlineKeyboardRow(button("🏖️ Отпуск/Больничный", "adm:absences")),
		tgbotapi.NewInlineKeyboardRow(button("🎉 Праздничные дни", "adm:holidays")),
		tgbotapi.NewInlineKeyboardRow(button("📦 Заказы БАДов", "adm:orders:0")),
		tgbotapi.NewInlineKeyboardRow(button("📊 Экспорт в Excel", "adm:export")),
		tgbotapi.NewInlineKeyboardRow(button("🚪 Выйти", "adm:logout")),
	)
}

func weekdayKeyboard() *tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, d := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday, time.Saturday, time.Sunday} {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(button(notify.WeekdayName(d), fmt.Sprintf("adm:wd:%d", d))))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", "adm:schedule")))
	return markup(rows...)
}
