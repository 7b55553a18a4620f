// hours-event-sim publishes a fake schedule.hours.updated.v1 event so
// the scheduling service's hours consumer can be exercised locally
// without the schedule-configuration service running.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/slotline/schedcore/libs/runtime"
)

func main() {
	var (
		brokers  = flag.String("brokers", runtime.Getenv("KAFKA_BROKERS", "localhost:9092"), "comma-separated kafka brokers")
		topic    = flag.String("topic", runtime.Getenv("KAFKA_HOURS_TOPIC", "schedule.hours.updated.v1"), "topic to publish to")
		provider = flag.String("provider-id", runtime.Getenv("PROVIDER_ID", ""), "provider to update hours for")
		week     = flag.String("week", "1-5:540-1020", "weekday ranges as day[-day]:openMin-closeMin, comma separated (0=Sunday)")
	)
	flag.Parse()

	if strings.TrimSpace(*provider) == "" {
		fatal("PROVIDER_ID is required")
	}
	days, err := parseWeek(*week)
	if err != nil {
		fatal(err.Error())
	}

	payload, err := json.Marshal(map[string]any{
		"provider_id": *provider,
		"week":        days,
	})
	if err != nil {
		fatal(err.Error())
	}

	eventID := uuid.NewString()
	writer := &kafka.Writer{
		Addr:     kafka.TCP(strings.Split(*brokers, ",")...),
		Topic:    *topic,
		Balancer: &kafka.Hash{},
	}
	defer writer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(*provider),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(eventID)},
			{Key: "event_type", Value: []byte(*topic)},
		},
	})
	if err != nil {
		fatal(err.Error())
	}
	fmt.Printf("published event_id=%s provider_id=%s days=%d\n", eventID, *provider, len(days))
}

type dayWindow struct {
	Weekday      int `json:"weekday"`
	OpenMinutes  int `json:"open_minutes"`
	CloseMinutes int `json:"close_minutes"`
}

// parseWeek turns "1-5:540-1020,6:600-840" into per-weekday windows.
func parseWeek(raw string) ([]dayWindow, error) {
	var out []dayWindow
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		daysSpec, minsSpec, ok := strings.Cut(part, ":")
		if !ok {
			return nil, fmt.Errorf("invalid week part %q", part)
		}
		openRaw, closeRaw, ok := strings.Cut(minsSpec, "-")
		if !ok {
			return nil, fmt.Errorf("invalid minutes in %q", part)
		}
		openMin, err := strconv.Atoi(openRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid open minutes in %q", part)
		}
		closeMin, err := strconv.Atoi(closeRaw)
		if err != nil {
			return nil, fmt.Errorf("invalid close minutes in %q", part)
		}
		if closeMin <= openMin || openMin < 0 || closeMin > 24*60 {
			return nil, fmt.Errorf("minutes out of range in %q", part)
		}

		first, lastRaw, ranged := strings.Cut(daysSpec, "-")
		firstDay, err := strconv.Atoi(first)
		if err != nil {
			return nil, fmt.Errorf("invalid weekday in %q", part)
		}
		lastDay := firstDay
		if ranged {
			lastDay, err = strconv.Atoi(lastRaw)
			if err != nil {
				return nil, fmt.Errorf("invalid weekday range in %q", part)
			}
		}
		if firstDay < 0 || lastDay > 6 || lastDay < firstDay {
			return nil, fmt.Errorf("weekday out of range in %q", part)
		}
		for d := firstDay; d <= lastDay; d++ {
			out = append(out, dayWindow{Weekday: d, OpenMinutes: openMin, CloseMinutes: closeMin})
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no weekday windows in %q", raw)
	}
	return out, nil
}


func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(1)
}
