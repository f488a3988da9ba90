// Command checkin performs one attendance check-in attempt against the API,
// standing in for the device-side orchestrator. One invocation is one
// explicit user action; it never retries.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendmate/internal/apiclient"
	"attendmate/internal/attendance"
	"attendmate/internal/config"
	"attendmate/internal/orchestrator"
)

// flagLocation yields the coordinates passed on the command line, the CLI's
// stand-in for a single-shot device fix. Without both flags the attempt
// fails as location-unavailable rather than submitting fabricated
// coordinates.
type flagLocation struct {
	lat, long float64
	set       bool
}

func (l flagLocation) Current(ctx context.Context) (attendance.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return attendance.Coordinates{}, err
	}
	if !l.set {
		return attendance.Coordinates{}, fmt.Errorf("no location fix: pass -lat and -long")
	}
	return attendance.Coordinates{Lat: l.lat, Long: l.long}, nil
}

func main() {
	cfg := config.Load()

	var (
		apiURL  = flag.String("api", cfg.APIBaseURL, "attendance API base URL")
		token   = flag.String("token", os.Getenv("ATTENDMATE_TOKEN"), "bearer token for the student")
		classID = flag.String("class", "", "class to check in to")
		lat     = flag.Float64("lat", 0, "device latitude")
		long    = flag.Float64("long", 0, "device longitude")
		timeout = flag.Duration("timeout", 30*time.Second, "overall attempt timeout")
	)
	flag.Parse()

	if *classID == "" {
		fmt.Fprintln(os.Stderr, "usage: checkin -class <id> -lat <lat> -long <long> [-token <jwt>]")
		os.Exit(2)
	}
	if *token == "" {
		fmt.Fprintln(os.Stderr, "no token: pass -token or set ATTENDMATE_TOKEN")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var latSet, longSet bool
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "lat":
			latSet = true
		case "long":
			longSet = true
		}
	})
	located := latSet && longSet

	o := orchestrator.New(
		flagLocation{lat: *lat, long: *long, set: located},
		apiclient.New(*apiURL, *token, *timeout),
	)
	result := o.Attempt(ctx, *classID)

	fmt.Println(result.Message)
	if result.Record != nil {
		fmt.Printf("record %s: %s at %s\n", result.Record.ID, result.Record.Status,
			result.Record.CheckedInAt.Local().Format(time.RFC3339))
	}

	switch result.Outcome {
	case orchestrator.OutcomeRecorded, orchestrator.OutcomeAlreadyRecorded:
		os.Exit(0)
	case orchestrator.OutcomeLocationUnavailable, orchestrator.OutcomeCancelled:
		os.Exit(3)
	case orchestrator.OutcomeOutOfRange, orchestrator.OutcomeNoActiveSession, orchestrator.OutcomeSessionClosed:
		os.Exit(2)
	default:
		os.Exit(1)
	}
}
