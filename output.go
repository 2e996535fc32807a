package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/danpilch/idfmpal/internal/transit"
)

const clockLayout = "15:04"

type printer struct {
	w    io.Writer
	json bool
}

func (p *printer) encode(v any) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (p *printer) table(header string, rows func(tw *tabwriter.Writer)) error {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, header)
	rows(tw)
	return tw.Flush()
}

func (p *printer) Lines(lines []transit.Line) error {
	if p.json {
		return p.encode(lines)
	}
	return p.table("MODE\tID\tNAME", func(tw *tabwriter.Writer) {
		for _, l := range lines {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", l.Mode, l.ID, l.Name)
		}
	})
}

func (p *printer) Stops(stops []transit.Stop) error {
	if p.json {
		return p.encode(stops)
	}
	return p.table("STOP\tMONITORING REF\tNAME\tCITY", func(tw *tabwriter.Writer) {
		for _, s := range stops {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.StopID, s.MonitoringRef(), s.Name, s.City)
		}
	})
}

func (p *printer) Traffic(events []transit.TrafficEvent) error {
	if p.json {
		return p.encode(events)
	}
	return p.table("TIME\tLINE\tDESTINATION\tPLATFORM\tSTATUS", func(tw *tabwriter.Writer) {
		for _, e := range events {
			at := "--:--"
			if !e.Scheduled.IsZero() {
				at = e.Scheduled.Local().Format(clockLayout)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", at, e.LineID, e.DestinationName, e.Platform, e.Status)
		}
	})
}

func (p *printer) Names(names []string) error {
	if p.json {
		return p.encode(names)
	}
	for _, n := range names {
		if _, err := fmt.Fprintln(p.w, n); err != nil {
			return err
		}
	}
	return nil
}

func (p *printer) Infos(infos []transit.InfoMessage) error {
	if p.json {
		return p.encode(infos)
	}
	for _, m := range infos {
		fmt.Fprintf(p.w, "[%s] %s\n%s\n\n", m.Channel, m.Title, m.Message)
	}
	return nil
}

func (p *printer) Reports(reports []transit.DisruptionReport) error {
	if p.json {
		return p.encode(reports)
	}
	for _, r := range reports {
		fmt.Fprintf(p.w, "[%s/%s] %s\n", r.Severity, r.Effect, r.Title)
		if len(r.Tags) > 0 {
			fmt.Fprintf(p.w, "tags: %s\n", strings.Join(r.Tags, ", "))
		}
		fmt.Fprintf(p.w, "%s\n\n", r.Message)
	}
	return nil
}
