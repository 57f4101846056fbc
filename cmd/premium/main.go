package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/alecthomas/kingpin/v2"
	"go.uber.org/zap"

	"github.com/eugenenazirov/premium-quote/internal/logging"
	"github.com/eugenenazirov/premium-quote/internal/premium"
	"github.com/eugenenazirov/premium-quote/internal/quote"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	kingpinApp := kingpin.New("premium", "Computes a motor insurance premium without storing the applicant")
	kingpinApp.UsageWriter(out)
	kingpinApp.ErrorWriter(out)
	age := kingpinApp.Flag("age", "Driver age in years (18-100)").Required().Int()
	tenure := kingpinApp.Flag("tenure", "License tenure bucket").Required().Enum(
		string(premium.TenureUnder5), string(premium.Tenure5To20), string(premium.TenureOver20))
	power := kingpinApp.Flag("power", "Fiscal engine power").Default("0").Int()
	usage := kingpinApp.Flag("usage", "Vehicle usage (personal, professional or other)").Default(string(premium.UsagePersonal)).String()
	logLevel := kingpinApp.Flag("log-level", "Log level; debug prints every factor").Default("warn").String()

	if _, err := kingpinApp.Parse(args); err != nil {
		return err
	}

	logger, err := logging.New(*logLevel)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	svc := quote.NewService(premium.New(premium.WithLogger(logger)), nil, quote.WithLogger(logger))
	result, err := svc.Estimate(context.Background(), quote.Submission{
		Age:           *age,
		LicenseTenure: *tenure,
		Power:         *power,
		Usage:         premium.Usage(*usage),
	})
	if err != nil {
		return err
	}
	logger.Debug("premium computed", zap.String("premium", result.Formatted))

	return printBreakdown(out, result.Breakdown)
}

func printBreakdown(out io.Writer, b premium.Breakdown) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	rows := []struct {
		label string
		value float64
	}{
		{"age factor", b.AgeFactor},
		{"license factor", b.LicenseFactor},
		{"vehicle factor", b.VehicleFactor},
		{"power factor", b.PowerFactor},
		{"passenger factor", b.PassengerFactor},
		{"usage factor", b.UsageFactor},
		{"multiplier", b.Multiplier},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%.4f\n", row.label, row.value)
	}
	fmt.Fprintf(w, "premium\t%s\n", b.Formatted())
	return w.Flush()
}
