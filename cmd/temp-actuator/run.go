package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sweeney/temp-actuator/internal/choreo"
	"github.com/sweeney/temp-actuator/internal/config"
	"github.com/sweeney/temp-actuator/internal/controller"
	"github.com/sweeney/temp-actuator/internal/gpio"
	"github.com/sweeney/temp-actuator/internal/logic"
	"github.com/sweeney/temp-actuator/internal/metrics"
	"github.com/sweeney/temp-actuator/internal/mqtt"
	"github.com/sweeney/temp-actuator/internal/schedule"
	"github.com/sweeney/temp-actuator/internal/status"
	"github.com/sweeney/temp-actuator/internal/web"
)

func run(cfg config.Config) error {
	// Initialize GPIO
	chip, err := openChip(cfg.GPIO)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer chip.Close()
	if err := gpio.Setup(chip, cfg.Actuator.Pin, gpio.Out); err != nil {
		return fmt.Errorf("setup gpio: %w", err)
	}

	// Initialize session
	transport, err := choreo.ParseTransport(cfg.Choreo.Transport, cfg.Choreo.CAFile)
	if err != nil {
		return fmt.Errorf("init transport: %w", err)
	}
	session, err := choreo.NewSession(choreo.Config{
		Credentials: choreo.Credentials{
			Account:    cfg.Account.Name,
			AppKeyName: cfg.Account.AppKeyName,
			AppKey:     cfg.Account.AppKey,
		},
		Transport: transport,
		BaseURL:   cfg.Choreo.BaseURL,
	})
	if err != nil {
		return fmt.Errorf("init session: %w", err)
	}
	defer session.Close()

	rule := logic.Rule{
		Field:     cfg.Actuator.Field,
		Threshold: cfg.Actuator.Threshold,
		Pin:       cfg.Actuator.Pin,
		Level:     gpio.Low,
	}
	ctrl := controller.New(controller.Config{
		Procedure:   cfg.Choreo.Procedure,
		Profile:     cfg.Choreo.Profile,
		Inputs:      []choreo.Input{{Name: "Address", Value: cfg.Choreo.Address}},
		Timeout:     cfg.Choreo.Timeout,
		MaxFieldLen: cfg.Choreo.MaxFieldLen,
	}, session, logic.NewPolicy(rule, chip), time.Now)

	// Initialize MQTT
	var publisher mqtt.Publisher = mqtt.NopPublisher{}
	var mqttStatus mqtt.ConnectionStatus = mqtt.NopPublisher{}
	if cfg.MQTT.Broker != "" {
		p, err := mqtt.NewRealPublisher(cfg.MQTT.Broker, cfg.MQTT.ClientID)
		if err != nil {
			log.Printf("mqtt disabled: %v", err)
		} else {
			publisher, mqttStatus = p, p
		}
	}
	defer publisher.Close()

	// Initialize status tracker (before STARTUP so snapshot is available)
	start := time.Now()
	tracker := status.NewTracker(start, status.Config{
		IntervalMs: cfg.Schedule.Interval.Milliseconds(),
		TimeoutMs:  cfg.Choreo.Timeout.Milliseconds(),
		Budget:     cfg.Schedule.MaxRuns,
		Procedure:  cfg.Choreo.Procedure,
		Field:      rule.Field,
		Threshold:  rule.Threshold,
		Pin:        rule.Pin,
		Transport:  cfg.Choreo.Transport,
		GPIO:       cfg.GPIO.Backend,
		Broker:     cfg.MQTT.Broker,
		HTTPAddr:   cfg.HTTPAddr,
	})
	if net := readNetworkInfo(); net != nil {
		tracker.SetNetwork(net)
	}
	m := metrics.New()

	// Start HTTP status server
	if cfg.HTTPAddr != "" {
		srv := web.New(cfg.HTTPAddr, tracker, m.Handler())
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("http server error: %v", err)
			}
		}()
		defer srv.Shutdown(context.Background())
		log.Printf("http status server listening on %s", cfg.HTTPAddr)
	}

	sched := schedule.New(cfg.Schedule.Interval, cfg.Schedule.MaxRuns, start)
	tracker.SetSchedule(sched.State(), start)

	// Publish startup event with full status snapshot
	publishSystem(publisher, tracker, mqttStatus, "STARTUP", "")

	log.Printf("started: procedure=%s interval=%v timeout=%v runs=%d rule=%s>%d pin=%d",
		cfg.Choreo.Procedure, cfg.Schedule.Interval, cfg.Choreo.Timeout, cfg.Schedule.MaxRuns,
		rule.Field, rule.Threshold, rule.Pin)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	return runLoop(sched, ctrl, publisher, mqttStatus, tracker, m, time.Now, time.After, sigCh)
}

// runLoop runs cycles until the budget is exhausted or a signal arrives.
// Cycles never overlap; a signal is only observed between cycles, so an
// in-flight invocation completes or times out first. wait returns a channel
// that fires after the given duration.
func runLoop(sched *schedule.Scheduler, ctrl *controller.Controller, publisher mqtt.Publisher, mqttStatus mqtt.ConnectionStatus, tracker *status.Tracker, m *metrics.Metrics, now func() time.Time, wait func(time.Duration) <-chan time.Time, sig <-chan os.Signal) error {
	for {
		if sched.Done() {
			budget := sched.State().Budget
			log.Printf("budget of %d runs exhausted, exiting", budget)
			if tracker != nil {
				tracker.SetDone()
			}
			publishSystem(publisher, tracker, mqttStatus, "DONE", "budget exhausted")
			return nil
		}

		select {
		case s := <-sig:
			shutdown(s, publisher, tracker, mqttStatus)
			return nil
		default:
		}

		select {
		case s := <-sig:
			shutdown(s, publisher, tracker, mqttStatus)
			return nil
		case <-wait(sched.Next(now())):
		}

		t := now()
		if !sched.Due(t) {
			continue
		}
		run := sched.Begin(t)
		cy := ctrl.RunCycle(context.Background())
		st := sched.State()
		logCycle(run, st.Budget, cy)

		if m != nil {
			m.ObserveCycle(cy, st)
		}
		if tracker != nil {
			tracker.RecordCycle(run, cy)
			tracker.SetSchedule(st, st.LastRun.Add(st.Interval))
		}
		if mqttStatus != nil {
			connected := mqttStatus.IsConnected()
			if tracker != nil {
				tracker.SetMQTTConnected(connected)
			}
			if m != nil {
				m.SetMQTTConnected(connected)
			}
		}

		event := mqtt.ReadingEvent{Timestamp: now(), Run: run, Budget: st.Budget, Cycle: cy}
		if err := publisher.Publish(event); err != nil {
			log.Printf("publish error: %v", err)
			// Don't crash on publish failure
		}
	}
}

func logCycle(run, budget int, cy controller.Cycle) {
	log.Printf("cycle %d/%d id=%s outcome=%s duration=%v", run, budget, cy.ID, cy.Outcome(), cy.Duration)

	for _, err := range cy.Stats.FieldErrors {
		log.Printf("cycle %d: skipped field: %v", run, err)
	}
	if cy.Err != nil {
		log.Printf("cycle %d: %v", run, cy.Err)
	}

	a := cy.Action
	switch {
	case !cy.Found:
		if cy.Err == nil {
			log.Printf("cycle %d: field not found in response", run)
		}
		return
	case a.Lenient:
		log.Printf("cycle %d: %s=%q is not a clean integer, read as %d", run, a.Field, a.Value, a.Reading)
	default:
		log.Printf("cycle %d: %s=%d", run, a.Field, a.Reading)
	}
	switch {
	case a.Written:
		log.Printf("cycle %d: threshold exceeded, pin driven low", run)
	case a.Triggered:
		log.Printf("cycle %d: threshold exceeded, actuation failed: %v", run, cy.ActuationErr)
	}
}

func shutdown(s os.Signal, publisher mqtt.Publisher, tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus) {
	log.Printf("received %v, shutting down", s)
	signalName := "UNKNOWN"
	if s == syscall.SIGINT {
		signalName = "SIGINT"
	} else if s == syscall.SIGTERM {
		signalName = "SIGTERM"
	}
	publishSystem(publisher, tracker, mqttStatus, "SHUTDOWN", signalName)
}

// publishSystem publishes a retained lifecycle event carrying a status snapshot.
func publishSystem(publisher mqtt.Publisher, tracker *status.Tracker, mqttStatus mqtt.ConnectionStatus, name, reason string) {
	event := mqtt.SystemEvent{
		Timestamp: time.Now(),
		Event:     name,
		Reason:    reason,
		Retained:  true,
	}
	if tracker != nil {
		if mqttStatus != nil {
			tracker.SetMQTTConnected(mqttStatus.IsConnected())
		}
		snap := tracker.Snapshot()
		event.Timestamp = snap.Now
		event.RawPayload = status.FormatStatusEvent(snap, name, reason)
	}
	if err := publisher.PublishSystem(event); err != nil {
		log.Printf("failed to publish %s event: %v", name, err)
	} else {
		log.Printf("published %s event", name)
	}
}

// pi-helper env var names (written to /run/pi-helper.env).
const (
	envNetworkType       = "NETWORK_TYPE"
	envNetworkIP         = "NETWORK_IP"
	envNetworkStatus     = "NETWORK_STATUS"
	envNetworkGateway    = "NETWORK_GATEWAY"
	envNetworkWifiStatus = "NETWORK_WIFI_STATUS"
	envNetworkWifiSSID   = "NETWORK_WIFI_SSID"
)

func readNetworkInfo() *status.NetworkInfo {
	s := os.Getenv(envNetworkStatus)
	if s == "" {
		return nil
	}
	return &status.NetworkInfo{
		Type:       os.Getenv(envNetworkType),
		IP:         os.Getenv(envNetworkIP),
		Status:     s,
		Gateway:    os.Getenv(envNetworkGateway),
		WifiStatus: os.Getenv(envNetworkWifiStatus),
		SSID:       os.Getenv(envNetworkWifiSSID),
	}
}
