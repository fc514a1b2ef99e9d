package main

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/mocklog"
	"github.com/NCSU-High-Powered-Rocketry-Club/FIRM-Client/protocol"
)

type captureSummary struct {
	Frames   int
	Duration time.Duration
	IDCounts map[byte]int
}

func summarizeCapture(records []mocklog.Record) captureSummary {
	s := captureSummary{IDCounts: map[byte]int{}}
	for _, r := range records {
		s.Frames++
		s.Duration += r.Delay
		// Frame layout: sync(2) then id. Records are already validated.
		if len(r.Frame) > 2 {
			s.IDCounts[r.Frame[2]]++
		}
	}
	return s
}

func (s captureSummary) rateHz() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return float64(s.Frames) / s.Duration.Seconds()
}

func printCaptureSummary(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return fmt.Errorf("capture path is empty")
	}

	hdr, records, err := mocklog.Open(path)
	if err != nil {
		return err
	}
	s := summarizeCapture(records)

	fmt.Printf("capture: %s\n", path)
	fmt.Printf("sample rate hint: %d Hz\n", hdr.SampleRateHz)
	fmt.Printf("frames: %d\n", s.Frames)
	fmt.Printf("duration: %s (%.1f frames/s)\n", s.Duration.Round(time.Millisecond), s.rateHz())

	ids := make([]int, 0, len(s.IDCounts))
	for id := range s.IDCounts {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)
	for _, id := range ids {
		fmt.Printf("  id 0x%02X (%s): %d\n", id, protocol.KindOf(byte(id)), s.IDCounts[byte(id)])
	}
	return nil
}
