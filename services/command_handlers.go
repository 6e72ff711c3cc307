package services

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/callrescue/callrescue/db"
	"github.com/callrescue/callrescue/internal/timeparse"
)

const noContextReply = "Nothing to act on right now. You'll get a text when the next call comes in."

var quickDigitRe = regexp.MustCompile(`^[1-9]$`)

// subscriptionCommand handles the global opt-out and opt-in keywords.
func subscriptionCommand() Command {
	return Command{
		Name:     "subscription",
		Priority: 10,
		Match: func(body string) bool {
			switch body {
			case "STOP", "UNSUBSCRIBE", "START", "RESUME":
				return true
			}
			return false
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			unsubscribe := c.BodyUpper == "STOP" || c.BodyUpper == "UNSUBSCRIBE"
			if err := c.Users.SetUnsubscribed(c.User.ID, c.User.OrgID, unsubscribe); err != nil {
				return CommandResult{}, err
			}
			if unsubscribe {
				return CommandResult{
					Success: true,
					Message: "You won't receive any more alerts. Reply START to turn them back on.",
				}, nil
			}
			return CommandResult{
				Success: true,
				Message: "Alerts are back on.",
			}, nil
		},
	}
}

// helpCommand lists the reply vocabulary.
func helpCommand() Command {
	return Command{
		Name:     "help",
		Priority: 20,
		Match: func(body string) bool {
			return body == "HELP" || body == "COMMANDS"
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			return CommandResult{
				Success: true,
				Message: "Reply 1-9 to snooze hrs, SNOOZE 3H/45M/TOMORROW, NOTE <text>, WON, LOST, CALLED, or a time like TOMORROW 9AM to book. STOP to opt out.",
			}, nil
		},
	}
}

// snoozeCommand hides the context lead until the parsed snooze time.
func snoozeCommand() Command {
	return Command{
		Name:     "snooze",
		Priority: 30,
		Match: func(body string) bool {
			return body == "SNOOZE" || strings.HasPrefix(body, "SNOOZE ")
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			lead, ok := contextLead(c)
			if !ok {
				return CommandResult{Message: noContextReply}, nil
			}

			arg := strings.TrimSpace(strings.TrimPrefix(c.BodyUpper, "SNOOZE"))
			parsed := timeparse.ParseSnooze(arg, c.Now, c.Loc)
			if !parsed.OK {
				return CommandResult{Message: parsed.Hint}, nil
			}

			return applySnooze(c, lead, parsed)
		},
	}
}

// quickDigitCommand lets a bare 1-9 snooze the context lead that many hours.
func quickDigitCommand() Command {
	return Command{
		Name:     "quick_digit",
		Priority: 40,
		Match: func(body string) bool {
			return quickDigitRe.MatchString(body)
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			lead, ok := contextLead(c)
			if !ok {
				return CommandResult{Message: noContextReply}, nil
			}

			hours, _ := strconv.Atoi(c.BodyUpper)
			parsed := timeparse.SnoozeResult{
				SnoozeUntil: c.Now.Add(time.Duration(hours) * time.Hour),
				Label:       fmt.Sprintf("in %d hours", hours),
				OK:          true,
			}
			if hours == 1 {
				parsed.Label = "in 1 hour"
			}
			return applySnooze(c, lead, parsed)
		},
	}
}

func applySnooze(c *CommandContext, lead db.Lead, parsed timeparse.SnoozeResult) (CommandResult, error) {
	if err := c.Leads.Snooze(c.User.OrgID, lead.ID, parsed.SnoozeUntil, "snoozed"); err != nil {
		return CommandResult{}, err
	}
	if _, err := c.Leads.AddNote(lead.ID, "Snoozed until "+parsed.Label, "sms"); err != nil {
		return CommandResult{}, err
	}
	return CommandResult{
		Success:   true,
		Message:   fmt.Sprintf("Got it. %s snoozed until %s.", lead.Name, parsed.Label),
		EventType: c.contextEventType(),
		LeadID:    lead.ID,
	}, nil
}

// noteCommand appends free text to the context lead's note trail.
func noteCommand() Command {
	return Command{
		Name:     "note",
		Priority: 50,
		Match: func(body string) bool {
			return strings.HasPrefix(body, "NOTE ")
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			lead, ok := contextLead(c)
			if !ok {
				return CommandResult{Message: noContextReply}, nil
			}

			// preserve the operator's original casing in the note body
			text := strings.TrimSpace(c.Body[len("NOTE "):])
			if text == "" {
				return CommandResult{Message: "Add the note text after NOTE, like: NOTE wants a quote first."}, nil
			}

			if _, err := c.Leads.AddNote(lead.ID, text, "sms"); err != nil {
				return CommandResult{}, err
			}
			return CommandResult{
				Success: true,
				Message: fmt.Sprintf("Note added to %s.", lead.Name),
				LeadID:  lead.ID,
			}, nil
		},
	}
}

// statusCommand moves the context lead to a terminal or outcome status.
func statusCommand() Command {
	return Command{
		Name:     "status",
		Priority: 60,
		Match: func(body string) bool {
			switch body {
			case "WON", "CONVERTED", "LOST", "CALLED":
				return true
			}
			return false
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			lead, ok := contextLead(c)
			if !ok {
				return CommandResult{Message: noContextReply}, nil
			}

			switch c.BodyUpper {
			case "WON", "CONVERTED":
				if err := c.Leads.SetStatus(c.User.OrgID, lead.ID, db.LeadStatusConverted, "won"); err != nil {
					return CommandResult{}, err
				}
				return CommandResult{
					Success: true,
					Message: fmt.Sprintf("Nice. %s marked as won.", lead.Name),
					LeadID:  lead.ID,
				}, nil
			case "LOST":
				if err := c.Leads.SetStatus(c.User.OrgID, lead.ID, db.LeadStatusLost, "lost"); err != nil {
					return CommandResult{}, err
				}
				return CommandResult{
					Success: true,
					Message: fmt.Sprintf("%s marked as lost.", lead.Name),
					LeadID:  lead.ID,
				}, nil
			default: // CALLED records the outcome without ending the lead
				if err := c.Leads.SetStatus(c.User.OrgID, lead.ID, lead.Status, "called back"); err != nil {
					return CommandResult{}, err
				}
				if _, err := c.Leads.AddNote(lead.ID, "Called back", "sms"); err != nil {
					return CommandResult{}, err
				}
				return CommandResult{
					Success: true,
					Message: fmt.Sprintf("Logged the callback to %s.", lead.Name),
					LeadID:  lead.ID,
				}, nil
			}
		},
	}
}

// bookingCommand is the catch-all: anything the time parser accepts books
// or reschedules against the alert context. Parser clarifications are
// echoed back verbatim.
func bookingCommand() Command {
	return Command{
		Name:     "booking",
		Priority: 100,
		Match: func(body string) bool {
			return true
		},
		Execute: func(c *CommandContext) (CommandResult, error) {
			parsed := timeparse.Parse(c.BodyUpper, c.Now, c.Loc)
			if parsed.NeedsClarification {
				return CommandResult{Message: parsed.Prompt}, nil
			}

			if c.AlertContext == nil {
				return CommandResult{Message: noContextReply}, nil
			}

			// a job in context means the reply is a reschedule
			if c.AlertContext.JobID != "" {
				if err := c.Jobs.Reschedule(c.User.OrgID, c.AlertContext.JobID, parsed.Time); err != nil {
					return CommandResult{}, err
				}
				return CommandResult{
					Success:   true,
					Message:   fmt.Sprintf("Rescheduled for %s.", parsed.Confirmation),
					EventType: c.contextEventType(),
					JobID:     c.AlertContext.JobID,
				}, nil
			}

			lead, ok := contextLead(c)
			if !ok {
				return CommandResult{Message: noContextReply}, nil
			}

			job, err := c.Jobs.CreateJob(c.User.OrgID, db.CreateJobRequest{
				LeadID:       lead.ID,
				CustomerName: lead.Name,
				Phone:        lead.Phone,
				ScheduledAt:  &parsed.Time,
			})
			if err != nil {
				return CommandResult{}, err
			}
			if err := c.Leads.SetStatus(c.User.OrgID, lead.ID, db.LeadStatusConverted, "booked"); err != nil {
				return CommandResult{}, err
			}
			if _, err := c.Leads.AddNote(lead.ID, "Booked "+parsed.Confirmation, "sms"); err != nil {
				return CommandResult{}, err
			}

			return CommandResult{
				Success:   true,
				Message:   fmt.Sprintf("Booked %s for %s.", lead.Name, parsed.Confirmation),
				EventType: db.EventBookingCreated,
				LeadID:    lead.ID,
				JobID:     job.ID,
			}, nil
		},
	}
}

// contextLead loads the lead the latest alert context points at. Terminal
// leads no longer accept commands.
func contextLead(c *CommandContext) (db.Lead, bool) {
	if c.AlertContext == nil || c.AlertContext.LeadID == "" {
		return db.Lead{}, false
	}
	lead, err := c.Leads.GetLead(c.User.OrgID, c.AlertContext.LeadID)
	if err != nil {
		return db.Lead{}, false
	}
	if db.IsTerminalLeadStatus(lead.Status) {
		return db.Lead{}, false
	}
	return lead, true
}

func (c *CommandContext) contextEventType() string {
	if c.AlertContext == nil {
		return ""
	}
	return c.AlertContext.EventType
}
