package booking

import (
	"sync"
	"time"

	"github.com/Shorlotik/Bot-Stomatologija/internal/model"
)

// State represents the current step of a dialog.
type State string

const (
	StateIdle State = "idle"

	// Client booking.
	StateChooseService State = "choose_service"
	StateChooseDate    State = "choose_date"
	StateChooseTime    State = "choose_time"
	StateAskName       State = "ask_name"
	StateAskPhone      State = "ask_phone"
	StateAskComment    State = "ask_comment"
	StateConfirm       State = "confirm"
	StateComplete      State = "complete"
	StateCanceled      State = "canceled"

	// Supplement order.
	StateOrderName     State = "order_name"
	StateOrderPhone    State = "order_phone"
	StateOrderProducts State = "order_products"
	StateOrderComment  State = "order_comment"
	StateOrderConfirm  State = "order_confirm"

	// Admin panel.
	StateAdminPassword       State = "admin_password"
	StateAdminDate           State = "admin_date"
	StateAdminHours          State = "admin_hours"
	StateAdminHoursConfirm   State = "admin_hours_confirm"
	StateAdminAbsence        State = "admin_absence"
	StateAdminAbsenceConfirm State = "admin_absence_confirm"
	StateAdminHoliday        State = "admin_holiday"
	StateAdminReschedule     State = "admin_reschedule"
	StateAdminExport         State = "admin_export"
)

// AdminData holds values collected by admin dialogs.
type AdminData struct {
	Weekday      time.Weekday
	Window       model.Window
	AbsenceKind  model.AbsenceKind
	AbsenceStart time.Time
	AbsenceEnd   time.Time
	BookingID    int64
}

// Session represents a dialog session.
type Session struct {
	UserID    int64
	State     State
	Draft     Draft
	Order     OrderDraft
	Admin     AdminData
	StartedAt time.Time
	UpdatedAt time.Time
	mu        sync.Mutex
}

// NewSession creates a new idle session.
func NewSession(userID int64) *Session {
	now := time.Now()
	return &Session{
		UserID:    userID,
		State:     StateIdle,
		StartedAt: now,
		UpdatedAt: now,
	}
}

// SetState updates the session state.
func (s *Session) SetState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.State = state
	s.UpdatedAt = time.Now()
}

// GetState returns current state.
func (s *Session) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.State
}

// Update applies fn to the session under its lock.
func (s *Session) Update(fn func(s *Session)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s)
	s.UpdatedAt = time.Now()
}

// IsExpired checks if session has expired.
func (s *Session) IsExpired(timeout time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.UpdatedAt) > timeout
}

// SessionStore manages dialog sessions.
type SessionStore struct {
	sessions map[int64]*Session
	mu       sync.RWMutex
	timeout  time.Duration
}

// NewSessionStore creates a new session store.
func NewSessionStore(timeout time.Duration) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[int64]*Session),
		timeout:  timeout,
	}
}

// Get returns a live session for user or nil.
func (ss *SessionStore) Get(userID int64) *Session {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	s := ss.sessions[userID]
	if s == nil || s.IsExpired(ss.timeout) {
		return nil
	}
	return s
}

// GetOrCreate returns existing or creates new session.
func (ss *SessionStore) GetOrCreate(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session, ok := ss.sessions[userID]
	if ok && !session.IsExpired(ss.timeout) {
		return session
	}

	session = NewSession(userID)
	ss.sessions[userID] = session
	return session
}

// Delete removes a session.
func (ss *SessionStore) Delete(userID int64) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, userID)
}

// Reset replaces a session with a fresh idle one.
func (ss *SessionStore) Reset(userID int64) *Session {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	session := NewSession(userID)
	ss.sessions[userID] = session
	return session
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for userID, session := range ss.sessions {
		if session.IsExpired(ss.timeout) {
			delete(ss.sessions, userID)
			removed++
		}
	}
	return removed
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// FSM manages state transitions for dialogs.
type FSM struct {
	transitions map[State][]State
}

// NewFSM creates a new FSM with predefined transitions.
// Every state may also move to StateIdle or StateCanceled.
func NewFSM() *FSM {
	return &FSM{
		transitions: map[State][]State{
			StateIdle: {
				StateChooseService, StateChooseDate, StateOrderName,
				StateAdminPassword, StateAdminDate, StateAdminHours, StateAdminAbsence,
				StateAdminHoliday, StateAdminReschedule, StateAdminExport,
			},
			StateChooseService: {StateChooseDate},
			StateChooseDate:    {StateChooseTime, StateChooseService},
			StateChooseTime:    {StateAskName, StateChooseDate},
			StateAskName:       {StateAskPhone, StateChooseTime},
			StateAskPhone:      {StateAskComment, StateAskName},
			StateAskComment:    {StateConfirm, StateAskPhone},
			StateConfirm:       {StateComplete, StateAskComment, StateChooseTime},
			StateComplete:      {},
			StateCanceled:      {},

			StateOrderName:     {StateOrderPhone},
			StateOrderPhone:    {StateOrderProducts, StateOrderName},
			StateOrderProducts: {StateOrderComment, StateOrderPhone},
			StateOrderComment:  {StateOrderConfirm, StateOrderProducts},
			StateOrderConfirm:  {StateComplete, StateOrderComment},

			StateAdminPassword:       {},
			StateAdminDate:           {},
			StateAdminHours:          {StateAdminHoursConfirm},
			StateAdminHoursConfirm:   {StateComplete, StateAdminHours},
			StateAdminAbsence:        {StateAdminAbsenceConfirm},
			StateAdminAbsenceConfirm: {StateComplete, StateAdminAbsence},
			StateAdminHoliday:        {StateComplete},
			StateAdminReschedule:     {StateComplete},
			StateAdminExport:         {StateComplete},
		},
	}
}

// CanTransition checks if transition is allowed.
func (f *FSM) CanTransition(from, to State) bool {
	if to == StateIdle || to == StateCanceled {
		return true
	}
	allowed, ok := f.transitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Transition updates the session state if the transition is allowed.
func (f *FSM) Transition(session *Session, to State) bool {
	if f.CanTransition(session.GetState(), to) {
		session.SetState(to)
		return true
	}
	return false
}

// StatePrompts are the questions asked on entering a state.
var StatePrompts = map[State]string{
	StateChooseService: "Выберите услугу:",
	StateChooseDate:    "📅 Выберите дату приёма:",
	StateChooseTime:    "🕐 Выберите удобное время:",
	StateAskName:       "👤 Введите ваше ФИО (например: Иванов Иван):",
	StateAskPhone:      "📞 Введите номер телефона (например: +375291234567):",
	StateAskComment:    "📝 Добавьте комментарий или нажмите «Пропустить»:",
	StateCanceled:      "❌ Запись отменена.",

	StateOrderName:     "👤 Введите ваше ФИО:",
	StateOrderPhone:    "📞 Введите номер телефона:",
	StateOrderProducts: "📦 Перечислите продукты NSP, которые хотите заказать:",
	StateOrderComment:  "📝 Добавьте комментарий к заказу или нажмите «Пропустить»:",

	StateAdminPassword:   "🔐 Введите пароль администратора:",
	StateAdminDate:       "📅 Введите дату в формате ДД.ММ.ГГГГ:",
	StateAdminHours:      "🕐 Введите новые часы работы в формате ЧЧ:ММ-ЧЧ:ММ (например, 09:00-15:00):",
	StateAdminAbsence:    "📅 Введите период в формате ДД.ММ.ГГГГ-ДД.ММ.ГГГГ:",
	StateAdminHoliday:    "🎉 Введите дату праздника и название (например: 01.01.2025 Новый год):",
	StateAdminReschedule: "🕐 Введите новую дату и время в формате ДД.ММ.ГГГГ ЧЧ:ММ:",
	StateAdminExport:     "📊 Введите период в формате ДД.ММ.ГГГГ-ДД.ММ.ГГГГ или нажмите «Текущий месяц»:",
}
