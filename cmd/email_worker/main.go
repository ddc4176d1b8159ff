package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/healthcare-storefront/config"
	"github.com/oksasatya/healthcare-storefront/pkg/helpers"
	"github.com/oksasatya/healthcare-storefront/pkg/mailer"
	mailtpl "github.com/oksasatya/healthcare-storefront/pkg/mailer/templates"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	logger := helpers.NewLogger(cfg.AppName+"-email-worker", cfg.Env)

	if !cfg.MailSendEnabled {
		logger.Info("MAIL_SEND_ENABLED=false; email worker disabled (no real emails will be sent)")
		return
	}
	if cfg.RabbitMQURL == "" || cfg.RabbitMQEmailQueue == "" {
		logger.Fatal("RabbitMQ not configured")
	}
	if cfg.MailgunDomain == "" || cfg.MailgunAPIKey == "" || cfg.MailgunSender == "" {
		logger.Fatal("Mailgun not configured")
	}

	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatalf("amqp dial: %v", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		logger.Fatalf("amqp channel: %v", err)
	}
	defer func() { _ = ch.Close() }()

	// prefetch for fair dispatch across workers
	if err := ch.Qos(16, 0, false); err != nil {
		logger.Fatalf("qos: %v", err)
	}

	if _, err := ch.QueueDeclare(cfg.RabbitMQEmailQueue, true, false, false, false, nil); err != nil {
		logger.Fatalf("queue declare: %v", err)
	}

	msgs, err := ch.Consume(cfg.RabbitMQEmailQueue, "", false, false, false, false, nil)
	if err != nil {
		logger.Fatalf("consume: %v", err)
	}

	mg := mailer.NewMailgun(cfg.MailgunDomain, cfg.MailgunAPIKey, cfg.MailgunSender)
	ctx := context.Background()
	resolver := mailtpl.NewCachedResolver(mailtpl.IPAPIResolver{}, 4096, time.Hour)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	done := make(chan struct{})

	go func() {
		for msg := range msgs {
			var job mailer.EmailJob
			if err := json.Unmarshal(msg.Body, &job); err != nil {
				logger.WithError(err).Warn("bad message")
				_ = msg.Nack(false, false)
				continue
			}
			log := logger.WithFields(logrus.Fields{"template": job.Template, "kind": job.Kind()})

			subject, text, html, err := render(ctx, resolver, &job)
			if err != nil {
				log.WithError(err).Error("render failed")
				_ = msg.Nack(false, false)
				continue
			}

			c, cancel := context.WithTimeout(ctx, 15*time.Second)
			err = mg.Send(c, job.To, subject, text, html, job.Kind())
			cancel()
			if err != nil {
				log.WithError(err).Warn("send failed, requeued")
				_ = msg.Nack(false, true)
				continue
			}
			_ = msg.Ack(false)
		}
		close(done)
	}()

	logger.Infof("email worker listening on queue=%s", cfg.RabbitMQEmailQueue)
	<-stop
	logger.Info("shutting down...")
	select {
	case <-done:
	case <-time.After(2 * time.Second):
	}
}

// render resolves subject, text and html for job. Jobs without a template
// are sent as given.
func render(ctx context.Context, resolver mailtpl.GeoResolver, job *mailer.EmailJob) (string, string, string, error) {
	helpers.EnsureRecipientAndEmail(job)
	helpers.MapLegacyToUniversal(job)
	helpers.EnrichWithGeo(ctx, resolver, job.Data)

	if job.Template == "" {
		return job.Subject, job.Text, job.HTML, nil
	}
	subject, text, html, err := mailtpl.Render(job.Template, job.Data)
	if err != nil {
		return "", "", "", err
	}
	if strings.TrimSpace(subject) == "" {
		subject = helpers.SubjectForUniversal(job.Data)
	}
	return strings.TrimSpace(subject), text, html, nil
}
