package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/agendabeleza/internal/availability"
	"github.com/codr1/agendabeleza/internal/booking"
	"github.com/codr1/agendabeleza/internal/config"
	"github.com/codr1/agendabeleza/internal/db"
	"github.com/codr1/agendabeleza/internal/email"
)

const (
	CompletionJobName = "complete_past_appointments"
	ReminderJobName   = "appointment_reminders"

	jobTimeout          = 2 * time.Minute
	reminderSendTimeout = 10 * time.Second
)

// Jobs holds the dependencies of the appointment jobs.
type Jobs struct {
	DB      *db.DB
	Booking *booking.Service
	Sender  email.Sender
	Now     func() time.Time
}

// RegisterJobs adds the appointment jobs to the singleton scheduler. The
// reminder job is skipped when no sender is configured.
func RegisterJobs(cfg config.JobsConfig, jobs *Jobs) error {
	if jobs == nil || jobs.DB == nil || jobs.Booking == nil {
		return fmt.Errorf("appointment jobs require database and booking service")
	}

	if _, err := AddJob(JobSpec{Name: CompletionJobName, Cron: cfg.CompletionCron, Timeout: jobTimeout}, func(ctx context.Context) error {
		_, err := jobs.CompletePastAppointments(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("add %s job: %w", CompletionJobName, err)
	}

	if jobs.Sender == nil {
		log.Info().Str("job_name", ReminderJobName).Msg("Reminder job disabled: email not configured")
		return nil
	}
	reminders := JobSpec{Name: ReminderJobName, Cron: cfg.ReminderCron, Timeout: jobTimeout, QueueOverlaps: true}
	if _, err := AddJob(reminders, func(ctx context.Context) error {
		_, err := jobs.SendReminders(ctx)
		return err
	}); err != nil {
		return fmt.Errorf("add %s job: %w", ReminderJobName, err)
	}
	return nil
}

// CompletePastAppointments marks finished confirmed appointments as completed.
func (j *Jobs) CompletePastAppointments(ctx context.Context) (int, error) {
	logger := log.Ctx(ctx)
	completed, err := j.Booking.CompletePast(ctx)
	if err != nil {
		logger.Error().Err(err).Int("completed", completed).Msg("Failed to complete past appointments")
		return completed, err
	}
	if completed > 0 {
		logger.Info().Int("completed", completed).Msg("Completed past appointments")
	}
	return completed, nil
}

// SendReminders emails clients about appointments on the following day in
// their owner's timezone. Each appointment is reminded at most once.
func (j *Jobs) SendReminders(ctx context.Context) (int, error) {
	logger := log.Ctx(ctx)
	if j.Sender == nil {
		return 0, nil
	}

	owners, err := j.DB.Queries.ListOwners(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to load owners for reminder job")
		return 0, err
	}

	now := j.now()
	byDate := make(map[string][]db.Appointment)
	sent := 0
	for _, owner := range owners {
		ownerLogger := logger.With().Str("owner_id", owner.ID).Logger()
		tomorrow := availability.FormatDate(now.In(booking.OwnerLocation(owner)).AddDate(0, 0, 1))

		rows, ok := byDate[tomorrow]
		if !ok {
			rows, err = j.DB.Queries.ListRemindableAppointments(ctx, tomorrow)
			if err != nil {
				ownerLogger.Error().Err(err).Str("date", tomorrow).Msg("Failed to load appointments for reminder job")
				return sent, err
			}
			byDate[tomorrow] = rows
		}

		for _, appt := range rows {
			if appt.OwnerID != owner.ID {
				continue
			}
			if err := j.remind(ctx, owner, appt); err != nil {
				ownerLogger.Error().Err(err).Str("appointment_id", appt.ID).Msg("Failed to send appointment reminder")
				continue
			}
			sent++
		}
	}

	if sent > 0 {
		logger.Info().Int("sent", sent).Msg("Appointment reminders sent")
	}
	return sent, nil
}

func (j *Jobs) remind(ctx context.Context, owner db.Owner, appt db.Appointment) error {
	msg, err := email.BuildReminderEmail(email.DetailsFor(owner, appt))
	if err != nil {
		return err
	}

	sendCtx, cancel := context.WithTimeout(ctx, reminderSendTimeout)
	defer cancel()
	if err := j.Sender.Send(sendCtx, appt.ClientEmail.String, msg.Subject, msg.Body); err != nil {
		return err
	}
	return j.DB.Queries.MarkReminderSent(ctx, appt.ID, j.now())
}

func (j *Jobs) now() time.Time {
	if j.Now != nil {
		return j.Now()
	}
	return time.Now()
}
