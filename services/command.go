package services

import (
	"context"
	"database/sql"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/internal/config"
)

// CommandContext is everything a command handler can touch: the inbound
// message, the resolved operator, the latest alert context for their phone
// (nil when there is none) and the service layer.
type CommandContext struct {
	Ctx          context.Context
	Body         string // original text
	BodyUpper    string // trimmed, uppercased, whitespace-collapsed
	Phone        string
	User         db.User
	AlertContext *db.SmsAlertContext

	Now time.Time
	Loc *time.Location

	Leads         *LeadService
	Jobs          *JobService
	Users         *UserService
	Notifications *NotificationService
}

// CommandResult is what a handler hands back to the webhook: the reply text
// plus bookkeeping for the audit log.
type CommandResult struct {
	Success   bool
	Message   string
	EventType string
	LeadID    string
	JobID     string
}

// Command is one entry in the registry. Lower priority is tried first so
// specific prefixes win over the catch-all booking parser.
type Command struct {
	Name     string
	Priority int
	Match    func(bodyUpper string) bool
	Execute  func(c *CommandContext) (CommandResult, error)
}

const genericFailureReply = "Sorry, something went wrong on our end. Text HELP for commands."

// CommandService routes inbound operator SMS through the command registry.
type CommandService struct {
	PG            *sql.DB
	Leads         *LeadService
	Jobs          *JobService
	Users         *UserService
	Notifications *NotificationService

	registry []Command
}

func NewCommandService(pg *sql.DB, notifications *NotificationService) *CommandService {
	s := &CommandService{
		PG:            pg,
		Leads:         NewLeadService(pg),
		Jobs:          NewJobService(pg),
		Users:         NewUserService(pg),
		Notifications: notifications,
	}
	s.registry = buildRegistry()
	return s
}

func buildRegistry() []Command {
	registry := []Command{
		subscriptionCommand(),
		helpCommand(),
		snoozeCommand(),
		quickDigitCommand(),
		noteCommand(),
		statusCommand(),
		bookingCommand(),
	}
	sort.SliceStable(registry, func(i, j int) bool {
		return registry[i].Priority < registry[j].Priority
	})
	return registry
}

// FindHandler returns the first registry entry matching the message.
func (s *CommandService) FindHandler(bodyUpper string) *Command {
	for i := range s.registry {
		if s.registry[i].Match(bodyUpper) {
			return &s.registry[i]
		}
	}
	return nil
}

// HandleInbound processes one inbound SMS end to end and returns the reply
// text. It never returns an error: every failure mode maps to a reply.
func (s *CommandService) HandleInbound(ctx context.Context, from, body string) string {
	bodyUpper := strings.ToUpper(strings.TrimSpace(body))
	bodyUpper = strings.Join(strings.Fields(bodyUpper), " ")

	user, err := s.Users.GetUserByPhone(from)
	if err != nil {
		log.Printf("Inbound SMS from unrecognized phone %s", from)
		return "This number isn't linked to an account. Contact your administrator."
	}

	s.logInbound(user.OrgID, from, body)

	cctx := &CommandContext{
		Ctx:           ctx,
		Body:          strings.TrimSpace(body),
		BodyUpper:     bodyUpper,
		Phone:         from,
		User:          user,
		Now:           time.Now(),
		Loc:           s.userLocation(user),
		Leads:         s.Leads,
		Jobs:          s.Jobs,
		Users:         s.Users,
		Notifications: s.Notifications,
	}

	if alertCtx, err := s.Notifications.LatestContext(from); err == nil {
		cctx.AlertContext = &alertCtx
		s.Notifications.MarkContextReplied(alertCtx.ID)
	}

	cmd := s.FindHandler(bodyUpper)
	if cmd == nil {
		// the booking catch-all matches everything, so this shouldn't happen
		return genericFailureReply
	}

	result := s.dispatch(cmd, cctx)
	log.Printf("Command %s for user %s: success=%t", cmd.Name, user.ID, result.Success)
	return result.Message
}

// dispatch runs one command, containing panics and errors so nothing
// propagates past the webhook boundary.
func (s *CommandService) dispatch(cmd *Command, cctx *CommandContext) (result CommandResult) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Command %s panicked: %v", cmd.Name, r)
			result = CommandResult{Message: genericFailureReply}
		}
	}()

	result, err := cmd.Execute(cctx)
	if err != nil {
		log.Printf("Command %s failed: %v", cmd.Name, err)
		return CommandResult{Message: genericFailureReply}
	}
	return result
}

func (s *CommandService) userLocation(user db.User) *time.Location {
	tz := config.App.DefaultTimezone
	if prefs, err := s.Users.GetPreferences(user.ID, user.OrgID); err == nil && prefs.Timezone != "" {
		tz = prefs.Timezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return time.Local
	}
	return loc
}

func (s *CommandService) logInbound(orgID, from, body string) {
	_, err := s.PG.Exec(`
		INSERT INTO sms_logs (id, org_id, direction, from_phone, to_phone, body, status, created_at)
		VALUES ($1, $2, 'inbound', $3, '', $4, 'received', NOW())
	`, uuid.New().String(), orgID, from, body)
	if err != nil {
		log.Printf("Failed to log inbound SMS: %v", err)
	}
}
