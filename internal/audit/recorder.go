package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ziadkadry99/catalogd/internal/auth"
	"github.com/ziadkadry99/catalogd/internal/catalog"
	"go.uber.org/zap"
)

// Recorder writes catalog mutations and admin session events to the trail.
// It implements catalog.Observer and auth.Observer.
type Recorder struct {
	store *Store
}

// NewRecorder creates a Recorder.
func NewRecorder(store *Store) *Recorder {
	return &Recorder{store: store}
}

var changeActions = map[catalog.ChangeAction]Action{
	catalog.ChangeCreated: ActionServiceCreated,
	catalog.ChangeUpdated: ActionServiceUpdated,
	catalog.ChangeDeleted: ActionServiceDeleted,
}

// ServiceChanged records an admin API mutation. The actor is the admin
// session on ctx, or the system when there is none.
func (r *Recorder) ServiceChanged(ctx context.Context, c catalog.Change) {
	action, ok := changeActions[c.Action]
	if !ok {
		return
	}

	entry := Entry{Action: action, ActorType: ActorSystem, ActorID: "system"}
	if sess, ok := auth.SessionFromContext(ctx); ok {
		entry.ActorType = ActorAdmin
		entry.ActorID = sess.Email
	}

	subject := c.After
	if subject == nil {
		subject = c.Before
	}
	if subject != nil {
		entry.ServiceID = subject.ID
		entry.Summary = fmt.Sprintf("%s %q", verb(action), subject.Name)
	}
	entry.PreviousValue = encode(c.Before)
	entry.NewValue = encode(c.After)

	r.log(ctx, entry)
}

// AdminEvent records a login or logout.
func (r *Recorder) AdminEvent(ctx context.Context, kind auth.EventKind, s auth.Session) {
	action := ActionAdminLogin
	if kind == auth.EventLogout {
		action = ActionAdminLogout
	}
	r.log(ctx, Entry{
		ActorType: ActorAdmin,
		ActorID:   s.Email,
		Action:    action,
		Summary:   fmt.Sprintf("%s (session %s)", verb(action), s.ID),
	})
}

func (r *Recorder) log(ctx context.Context, e Entry) {
	if err := r.store.Log(context.WithoutCancel(ctx), e); err != nil {
		zap.L().Warn("writing audit entry",
			zap.String("action", string(e.Action)),
			zap.String("service_id", e.ServiceID),
			zap.Error(err))
	}
}

func verb(a Action) string {
	switch a {
	case ActionServiceCreated:
		return "Created service"
	case ActionServiceUpdated:
		return "Updated service"
	case ActionServiceDeleted:
		return "Deleted service"
	case ActionAdminLogin:
		return "Logged in"
	case ActionAdminLogout:
		return "Logged out"
	}
	return string(a)
}

func encode(s *catalog.Service) string {
	if s == nil {
		return ""
	}
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}
