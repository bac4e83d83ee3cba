package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/Shorlotik/Bot-Stomatologija/internal/access"
	"github.com/Shorlotik/Bot-Stomatologija/internal/booking"
	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
	"github.com/Shorlotik/Bot-Stomatologija/internal/notify"
	"github.com/Shorlotik/Bot-Stomatologija/internal/schedule"
)

const adminPanelText = "👩‍⚕️ *Панель врача*\n\nВыберите действие:"

var (
	errBadFormat  = errors.New("bad format")
	errMisaligned = errors.New("window not aligned")
)

func adminBackKeyboard() *tgbotapi.InlineKeyboardMarkup {
	return markup(tgbotapi.NewInlineKeyboardRow(button("⬅️ В панель врача", "adm:main")))
}

func (b *Bot) openAdmin(ctx context.Context, chatID int64, from *tgbotapi.User) {
	ok, err := b.access.IsAdmin(ctx, from.ID)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", from.ID).Msg("admin check failed")
		b.reply(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	if ok {
		b.edit(chatID, 0, adminPanelText, adminMenuKeyboard())
		return
	}
	if !b.access.PasswordEnabled() {
		b.reply(chatID, "⛔ Эта команда доступна только администратору.")
		return
	}
	sess := b.sessions.Reset(from.ID)
	b.prompt(chatID, sess, booking.StateAdminPassword, nil)
}

func (b *Bot) handleAdminPassword(ctx context.Context, chatID int64, from *tgbotapi.User, sess *booking.Session, text string) {
	b.sessions.Reset(sess.UserID)
	name := strings.TrimSpace(from.FirstName + " " + from.LastName)
	if name == "" {
		name = from.UserName
	}
	if err := b.access.Login(ctx, from.ID, chatID, name, text); err != nil {
		if access.IsAccessDenied(err) {
			b.reply(chatID, err.Error())
			return
		}
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", from.ID).Msg("admin login failed")
		b.reply(chatID, "❌ Произошла ошибка. Попробуйте позже.")
		return
	}
	b.edit(chatID, 0, "✅ Вы вошли как администратор.\n\n"+adminPanelText, adminMenuKeyboard())
}

func (b *Bot) logout(ctx context.Context, chatID, userID int64) {
	b.sessions.Reset(userID)
	if err := b.access.Logout(ctx, userID); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("logout failed")
	}
	b.reply(chatID, "Вы вышли из панели врача.")
	b.sendMainMenu(chatID, 0)
}

func (b *Bot) requireAdmin(ctx context.Context, chatID, userID int64) bool {
	if err := b.access.AdminMiddleware(ctx, userID); err != nil {
		if access.IsAccessDenied(err) {
			b.reply(chatID, err.Error())
		} else {
			zerolog.Ctx(ctx).Error().Err(err).Int64("user_id", userID).Msg("admin check failed")
		}
		return false
	}
	return true
}

func (b *Bot) handleAdminCallback(ctx context.Context, chatID int64, msgID int, userID int64, arg string) {
	parts := strings.Split(arg, ":")
	id := func(i int) int64 {
		if len(parts) <= i {
			return 0
		}
		v, _ := strconv.ParseInt(parts[i], 10, 64)
		return v
	}

	switch parts[0] {
	case "main":
		b.sessions.Reset(userID)
		b.edit(chatID, msgID, adminPanelText, adminMenuKeyboard())
	case "today":
		b.showDay(ctx, chatID, msgID, b.slots.Now(), 0)
	case "day":
		if len(parts) < 3 {
			return
		}
		day, err := time.ParseInLocation(dateLayout, parts[1], b.slots.Location())
		if err != nil {
			return
		}
		b.showDay(ctx, chatID, msgID, day, int(id(2)))
	case "date":
		b.startAdminInput(chatID, userID, booking.StateAdminDate, nil)
	case "appt":
		b.showAppointment(ctx, chatID, msgID, id(1))
	case "complete":
		b.completeAppointment(ctx, chatID, msgID, id(1))
	case "cancel":
		kb := markup(
			tgbotapi.NewInlineKeyboardRow(button("✅ Да, отменить", fmt.Sprintf("adm:cancelok:%d", id(1)))),
			tgbotapi.NewInlineKeyboardRow(button("⬅️ Нет, назад", fmt.Sprintf("adm:appt:%d", id(1)))),
		)
		b.edit(chatID, msgID, "Отменить запись? Клиент получит уведомление.", kb)
	case "cancelok":
		b.cancelAppointment(ctx, chatID, msgID, id(1))
	case "resched":
		b.startAdminInput(chatID, userID, booking.StateAdminReschedule, func(d *booking.AdminData) { d.BookingID = id(1) })
	case "book":
		b.startBooking(ctx, chatID, msgID, userID, "", true)
	case "schedule":
		b.showSchedule(ctx, chatID, msgID)
	case "hours":
		b.edit(chatID, msgID, "Выберите день недели:", weekdayKeyboard())
	case "wd":
		wd := time.Weekday(id(1))
		if wd < time.Sunday || wd > time.Saturday {
			return
		}
		b.startAdminInput(chatID, userID, booking.StateAdminHours, func(d *booking.AdminData) { d.Weekday = wd })
	case "hours_ok":
		b.applyHours(ctx, chatID, msgID, userID)
	case "absences":
		b.showAbsences(ctx, chatID, msgID)
	case "vacation", "sick":
		kind := model.AbsenceVacation
		if parts[0] == "sick" {
			kind = model.AbsenceSickLeave
		}
		b.startAdminInput(chatID, userID, booking.StateAdminAbsence, func(d *booking.AdminData) { d.AbsenceKind = kind })
	case "absence_ok":
		b.applyAbsence(ctx, chatID, msgID, userID)
	case "holidays":
		b.showHolidays(ctx, chatID, msgID)
	case "holiday_add":
		b.startAdminInput(chatID, userID, booking.StateAdminHoliday, nil)
	case "holiday_del":
		if len(parts) < 2 {
			return
		}
		day, err := time.ParseInLocation(dateLayout, parts[1], b.slots.Location())
		if err != nil {
			return
		}
		if err := b.admin.RemoveHoliday(ctx, day); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Time("date", day).Msg("remove holiday failed")
			b.reply(chatID, "❌ Не удалось удалить праздничный день.")
			return
		}
		b.showHolidays(ctx, chatID, msgID)
	case "orders":
		b.showOrders(ctx, chatID, msgID, int(id(1)))
	case "order":
		b.showOrder(ctx, chatID, msgID, id(1))
	case "process":
		if err := b.admin.ProcessOrder(ctx, id(1)); err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Int64("order_id", id(1)).Msg("process order failed")
			b.reply(chatID, "❌ Не удалось обновить заказ.")
			return
		}
		b.showOrders(ctx, chatID, msgID, 0)
	case "export":
		b.startAdminInput(chatID, userID, booking.StateAdminExport, nil)
	case "export_month":
		b.sessions.Reset(userID)
		today := b.slots.Day(b.slots.Now())
		from := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
		b.sendExport(ctx, chatID, from, from.AddDate(0, 1, -1))
	case "logout":
		b.logout(ctx, chatID, userID)
	}
}

// startAdminInput resets the dialog, stores setup values and asks for text input.
func (b *Bot) startAdminInput(chatID, userID int64, state booking.State, setup func(d *booking.AdminData)) {
	sess := b.sessions.Reset(userID)
	if setup != nil {
		sess.Update(func(s *booking.Session) { setup(&s.Admin) })
	}
	var kb *tgbotapi.InlineKeyboardMarkup
	if state == booking.StateAdminExport {
		kb = markup(
			tgbotapi.NewInlineKeyboardRow(button("📅 Текущий месяц", "adm:export_month")),
			tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", "adm:main")),
		)
	} else {
		kb = adminBackKeyboard()
	}
	b.prompt(chatID, sess, state, kb)
}

func (b *Bot) handleAdminInput(ctx context.Context, chatID, userID int64, sess *booking.Session, text string) {
	if !b.requireAdmin(ctx, chatID, userID) {
		b.sessions.Reset(userID)
		return
	}
	loc := b.slots.Location()

	switch sess.GetState() {
	case booking.StateAdminDate:
		day, err := booking.ParseDate(text, loc)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		b.sessions.Reset(userID)
		b.showDay(ctx, chatID, 0, day, 0)

	case booking.StateAdminHours:
		w, err := parseWindow(text)
		if errors.Is(err, errMisaligned) {
			b.reply(chatID, fmt.Sprintf("❌ Время начала и окончания должно быть кратно %d минутам. Пример: 09:00-15:30", schedule.QuantumMinutes))
			return
		}
		if err != nil {
			b.reply(chatID, "❌ Неверный формат. Пример: 09:00-15:00")
			return
		}
		conflicts, err := b.admin.PreviewScheduleChange(ctx, sess.Admin.Weekday, w)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("schedule preview failed")
			b.reply(chatID, "❌ Не удалось проверить записи.")
			return
		}
		if !b.fsm.Transition(sess, booking.StateAdminHoursConfirm) {
			return
		}
		sess.Update(func(s *booking.Session) { s.Admin.Window = w })
		head := fmt.Sprintf("🕐 *%s*: новые часы работы %s", notify.WeekdayName(sess.Admin.Weekday), w)
		b.sendMarkdown(chatID, conflictsText(head, conflicts), *confirmAdminKeyboard("adm:hours_ok"))

	case booking.StateAdminAbsence:
		from, to, err := parsePeriod(text, loc)
		if err != nil {
			b.reply(chatID, "❌ Неверный формат. Пример: 01.07.2025-14.07.2025")
			return
		}
		conflicts, err := b.admin.PreviewAbsence(ctx, from, to)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("absence preview failed")
			b.reply(chatID, "❌ Не удалось проверить записи.")
			return
		}
		if !b.fsm.Transition(sess, booking.StateAdminAbsenceConfirm) {
			return
		}
		sess.Update(func(s *booking.Session) {
			s.Admin.AbsenceStart = from
			s.Admin.AbsenceEnd = to
		})
		head := fmt.Sprintf("🏖️ *%s*: %s – %s", sess.Admin.AbsenceKind.Title(), from.Format("02.01.2006"), to.Format("02.01.2006"))
		b.sendMarkdown(chatID, conflictsText(head, conflicts), *confirmAdminKeyboard("adm:absence_ok"))

	case booking.StateAdminHoliday:
		dateStr, title, _ := strings.Cut(strings.TrimSpace(text), " ")
		day, err := booking.ParseDate(dateStr, loc)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		title = strings.TrimSpace(title)
		if title == "" {
			title = "Праздничный день"
		}
		existing, err := b.admin.AddHoliday(ctx, day, title)
		if err != nil {
			zerolog.Ctx(ctx).Error().Err(err).Msg("add holiday failed")
			b.reply(chatID, "❌ Не удалось добавить праздничный день.")
			return
		}
		b.sessions.Reset(userID)
		msg := fmt.Sprintf("✅ %s (%s) добавлен.", title, day.Format("02.01.2006"))
		if len(existing) > 0 {
			msg += fmt.Sprintf("\n\n⚠️ На этот день есть записи (%d), они не отменены:\n", len(existing))
			for _, bk := range existing {
				msg += "• " + bookingLine(bk) + ", " + bk.FullName + "\n"
			}
		}
		b.edit(chatID, 0, msg, adminBackKeyboard())

	case booking.StateAdminReschedule:
		dateStr, timeStr, _ := strings.Cut(strings.TrimSpace(text), " ")
		day, err := booking.ParseDate(dateStr, loc)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		start, err := booking.ParseTimeOn(day, strings.TrimSpace(timeStr))
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		moved, err := b.bookings.Reschedule(ctx, sess.Admin.BookingID, start)
		if err != nil {
			b.reply(chatID, booking.UserMessage(err))
			return
		}
		b.sessions.Reset(userID)
		b.edit(chatID, 0, "✅ *Запись перенесена*\n\n"+notify.BookingInfo(*moved, true), adminBackKeyboard())

	case booking.StateAdminExport:
		from, to, err := parsePeriod(text, loc)
		if err != nil {
			b.reply(chatID, "❌ Неверный формат. Пример: 01.01.2025-31.01.2025")
			return
		}
		b.sessions.Reset(userID)
		b.sendExport(ctx, chatID, from, to)
	}
}

func confirmAdminKeyboard(data string) *tgbotapi.InlineKeyboardMarkup {
	return markup(tgbotapi.NewInlineKeyboardRow(button("✅ Подтвердить", data), button("❌ Отмена", "adm:main")))
}

func conflictsText(head string, conflicts []model.Booking) string {
	if len(conflicts) == 0 {
		return head + "\n\nКонфликтующих записей нет. Подтвердить?"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n⚠️ Будут отменены записи (%d):\n", head, len(conflicts))
	for _, bk := range conflicts {
		fmt.Fprintf(&sb, "• %s, %s\n", bookingLine(bk), bk.FullName)
	}
	sb.WriteString("\nКлиенты получат уведомление. Подтвердить?")
	return sb.String()
}

func (b *Bot) applyHours(ctx context.Context, chatID int64, msgID int, userID int64) {
	sess := b.sessions.Get(userID)
	if sess == nil || sess.GetState() != booking.StateAdminHoursConfirm {
		b.reply(chatID, "Сценарий устарел, начните заново: /admin")
		return
	}
	res, err := b.admin.ApplyScheduleChange(ctx, sess.Admin.Weekday, sess.Admin.Window)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("schedule change failed")
		b.reply(chatID, "❌ Не удалось изменить расписание.")
		return
	}
	b.fsm.Transition(sess, booking.StateComplete)
	b.sessions.Reset(userID)
	b.edit(chatID, msgID, fmt.Sprintf("✅ %s\nОтменено записей: %d", res.Summary, res.Cancelled), adminBackKeyboard())
}

func (b *Bot) applyAbsence(ctx context.Context, chatID int64, msgID int, userID int64) {
	sess := b.sessions.Get(userID)
	if sess == nil || sess.GetState() != booking.StateAdminAbsenceConfirm {
		b.reply(chatID, "Сценарий устарел, начните заново: /admin")
		return
	}
	a := sess.Admin
	res, err := b.admin.ApplyAbsence(ctx, a.AbsenceKind, a.AbsenceStart, a.AbsenceEnd)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("absence failed")
		b.reply(chatID, "❌ Не удалось сохранить период.")
		return
	}
	b.fsm.Transition(sess, booking.StateComplete)
	b.sessions.Reset(userID)
	b.edit(chatID, msgID, fmt.Sprintf("✅ %s\nОтменено записей: %d", res.Summary, res.Cancelled), adminBackKeyboard())
}

func (b *Bot) showDay(ctx context.Context, chatID int64, msgID int, day time.Time, page int) {
	day = b.slots.Day(day)
	list, err := b.admin.Appointments(ctx, day)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Time("date", day).Msg("appointments failed")
		b.reply(chatID, "❌ Не удалось загрузить записи.")
		return
	}
	title := fmt.Sprintf("📅 *Записи на %s*", notify.FormatDay(day))
	if len(list) == 0 {
		b.edit(chatID, msgID, title+"\n\nЗаписей нет.", adminBackKeyboard())
		return
	}

	items := make([]pageItem, 0, len(list))
	for _, bk := range list {
		items = append(items, pageItem{
			Label: fmt.Sprintf("%s %s", bk.Start.Format("15:04"), bk.FullName),
			Data:  fmt.Sprintf("adm:appt:%d", bk.ID),
		})
	}
	kb, pageTitle := paginate(items, page, fmt.Sprintf("adm:day:%s:", day.Format(dateLayout)), "adm:main")
	b.edit(chatID, msgID, fmt.Sprintf("%s\n%s\n\nВсего: %d", title, pageTitle, len(list)), kb)
}

func (b *Bot) showAppointment(ctx context.Context, chatID int64, msgID int, id int64) {
	bk, err := b.bookings.Get(ctx, id)
	if err != nil {
		b.reply(chatID, booking.UserMessage(err))
		return
	}
	var rows [][]tgbotapi.InlineKeyboardButton
	if bk.IsActive() {
		rows = append(rows,
			tgbotapi.NewInlineKeyboardRow(
				button("✅ Завершить", fmt.Sprintf("adm:complete:%d", id)),
				button("❌ Отменить", fmt.Sprintf("adm:cancel:%d", id)),
			),
			tgbotapi.NewInlineKeyboardRow(button("✏️ Перенести", fmt.Sprintf("adm:resched:%d", id))),
		)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		button("⬅️ Назад к списку", fmt.Sprintf("adm:day:%s:0", b.slots.Day(bk.Start).Format(dateLayout))),
	))
	text := fmt.Sprintf("📋 *Запись №%d* (%s)\n\n%s", bk.ID, statusTitle(bk.Status), notify.BookingInfo(*bk, true))
	b.edit(chatID, msgID, text, markup(rows...))
}

func statusTitle(s model.BookingStatus) string {
	switch s {
	case model.BookingCancelled:
		return "отменена"
	case model.BookingCompleted:
		return "завершена"
	}
	return "активна"
}

func (b *Bot) completeAppointment(ctx context.Context, chatID int64, msgID int, id int64) {
	if _, err := b.bookings.Complete(ctx, id); err != nil && !errors.Is(err, booking.ErrNotActive) {
		b.reply(chatID, booking.UserMessage(err))
		return
	}
	b.showAppointment(ctx, chatID, msgID, id)
}

func (b *Bot) cancelAppointment(ctx context.Context, chatID int64, msgID int, id int64) {
	if _, err := b.bookings.Cancel(ctx, id, doctorCancelReason, nil); err != nil && !errors.Is(err, booking.ErrNotActive) {
		b.reply(chatID, booking.UserMessage(err))
		return
	}
	b.showAppointment(ctx, chatID, msgID, id)
}

func (b *Bot) showSchedule(ctx context.Context, chatID int64, msgID int) {
	hours, err := b.admin.CurrentSchedule(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("schedule failed")
		b.reply(chatID, "❌ Не удалось загрузить расписание.")
		return
	}

	var sb strings.Builder
	sb.WriteString(notify.ScheduleText(hours.Template, hours.Restricted))
	sb.WriteString("\n\n*Ближайшие 7 дней:*\n")
	today := b.slots.Day(b.slots.Now())
	for i := 0; i < 7; i++ {
		day := today.AddDate(0, 0, i)
		w, ok := hours.Effective[day.Weekday()]
		state := "выходной"
		if ok {
			state = w.String()
		}
		fmt.Fprintf(&sb, "%s, %s: %s\n", day.Format("02.01"), notify.WeekdayName(day.Weekday()), state)
	}

	kb := markup(
		tgbotapi.NewInlineKeyboardRow(button("✏️ Изменить часы работы", "adm:hours")),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", "adm:main")),
	)
	b.edit(chatID, msgID, sb.String(), kb)
}

func (b *Bot) showAbsences(ctx context.Context, chatID int64, msgID int) {
	list, err := b.admin.Absences(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("absences failed")
		b.reply(chatID, "❌ Не удалось загрузить периоды.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🏖️ *Отпуск и больничный*\n\n")
	if len(list) == 0 {
		sb.WriteString("Запланированных периодов нет.")
	}
	for _, a := range list {
		fmt.Fprintf(&sb, "• %s: %s – %s\n", a.Kind.Title(), a.Start.Format("02.01.2006"), a.End.Format("02.01.2006"))
	}
	kb := markup(
		tgbotapi.NewInlineKeyboardRow(button("🏖️ Установить отпуск", "adm:vacation")),
		tgbotapi.NewInlineKeyboardRow(button("🏥 Установить больничный", "adm:sick")),
		tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", "adm:main")),
	)
	b.edit(chatID, msgID, sb.String(), kb)
}

func (b *Bot) showHolidays(ctx context.Context, chatID int64, msgID int) {
	list, err := b.admin.Holidays(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("holidays failed")
		b.reply(chatID, "❌ Не удалось загрузить праздники.")
		return
	}
	var sb strings.Builder
	sb.WriteString("🎉 *Праздничные дни*\n\n")
	if len(list) == 0 {
		sb.WriteString("Праздничных дней нет.")
	}
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(button("➕ Добавить праздничный день", "adm:holiday_add")),
	}
	for _, h := range list {
		fmt.Fprintf(&sb, "• %s — %s\n", h.Date.Format("02.01.2006"), h.Description)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			button("🗑 "+h.Date.Format("02.01.2006"), "adm:holiday_del:"+h.Date.Format(dateLayout)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад", "adm:main")))
	b.edit(chatID, msgID, sb.String(), markup(rows...))
}

func (b *Bot) showOrders(ctx context.Context, chatID int64, msgID int, page int) {
	orders, err := b.admin.PendingOrders(ctx)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("orders failed")
		b.reply(chatID, "❌ Не удалось загрузить заказы.")
		return
	}
	if len(orders) == 0 {
		b.edit(chatID, msgID, "📦 Новых заказов нет.", adminBackKeyboard())
		return
	}
	items := make([]pageItem, 0, len(orders))
	for _, o := range orders {
		items = append(items, pageItem{
			Label: fmt.Sprintf("🆕 %s — %s", o.CreatedAt.Format("02.01 15:04"), o.FullName),
			Data:  fmt.Sprintf("adm:order:%d", o.ID),
		})
	}
	kb, pageTitle := paginate(items, page, "adm:orders:", "adm:main")
	b.edit(chatID, msgID, fmt.Sprintf("📦 *Заказы БАДов*\n%s", pageTitle), kb)
}

func (b *Bot) showOrder(ctx context.Context, chatID int64, msgID int, id int64) {
	orders, err := b.admin.PendingOrders(ctx)
	if err != nil {
		b.reply(chatID, "❌ Не удалось загрузить заказ.")
		return
	}
	for _, o := range orders {
		if o.ID != id {
			continue
		}
		kb := markup(
			tgbotapi.NewInlineKeyboardRow(button("✅ Отметить обработанным", fmt.Sprintf("adm:process:%d", id))),
			tgbotapi.NewInlineKeyboardRow(button("⬅️ Назад к списку", "adm:orders:0")),
		)
		b.edit(chatID, msgID, notify.OrderInfo(o), kb)
		return
	}
	b.showOrders(ctx, chatID, msgID, 0)
}

func (b *Bot) sendExport(ctx context.Context, chatID int64, from, to time.Time) {
	data, name, err := b.admin.Export(ctx, from, to)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("export failed")
		b.reply(chatID, "❌ Не удалось сформировать файл.")
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = fmt.Sprintf("📊 Записи за период %s – %s", from.Format("02.01.2006"), to.Format("02.01.2006"))
	if _, err := b.tg.Send(doc); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("send export failed")
		b.reply(chatID, "❌ Не удалось отправить файл.")
	}
}

// parseWindow reads "HH:MM-HH:MM".
func parseWindow(text string) (model.Window, error) {
	open, closing, ok := strings.Cut(normalizeDashes(text), "-")
	if !ok {
		return model.Window{}, errBadFormat
	}
	o, err := model.ParseTimeOfDay(strings.TrimSpace(open))
	if err != nil {
		return model.Window{}, err
	}
	c, err := model.ParseTimeOfDay(strings.TrimSpace(closing))
	if err != nil {
		return model.Window{}, err
	}
	w := model.Window{Open: o, Close: c}
	if !w.Valid() {
		return model.Window{}, errBadFormat
	}
	if !w.Aligned(schedule.QuantumMinutes) {
		return model.Window{}, errMisaligned
	}
	return w, nil
}

// parsePeriod reads "DD.MM.YYYY-DD.MM.YYYY" or a single date.
func parsePeriod(text string, loc *time.Location) (time.Time, time.Time, error) {
	parts := strings.Split(normalizeDashes(text), "-")
	if len(parts) > 2 {
		return time.Time{}, time.Time{}, errBadFormat
	}
	from, err := booking.ParseDate(parts[0], loc)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	to := from
	if len(parts) == 2 {
		if to, err = booking.ParseDate(parts[1], loc); err != nil {
			return time.Time{}, time.Time{}, err
		}
	}
	if to.Before(from) {
		return time.Time{}, time.Time{}, errBadFormat
	}
	return from, to, nil
}

func normalizeDashes(s string) string {
	return strings.NewReplacer("–", "-", "—", "-", " ", "").Replace(s)
}
