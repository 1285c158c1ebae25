package orbit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

// tpvReport is the subset of a gpsd TPV JSON object we need.
type tpvReport struct {
	Class string  `json:"class"`
	Mode  int     `json:"mode"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
	Alt   float64 `json:"altMSL"`
}

// ObserverFromGPSD connects to gpsd at the given host:port, sends a WATCH
// command, and reads TPV reports until a 2D or 3D fix is obtained. Used when
// the station is configured to prefer a live GPS fix over static
// coordinates.
func ObserverFromGPSD(addr string, timeout time.Duration) (Observer, error) {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return Observer{}, fmt.Errorf("gpsd connect: %w", err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
		return Observer{}, fmt.Errorf("gpsd set deadline: %w", err)
	}

	if _, err := fmt.Fprint(conn, `?WATCH={"enable":true,"json":true};`); err != nil {
		return Observer{}, fmt.Errorf("gpsd watch: %w", err)
	}

	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var report tpvReport
		if err := json.Unmarshal(scanner.Bytes(), &report); err != nil {
			continue
		}
		if report.Class != "TPV" {
			continue
		}
		if report.Mode >= 2 {
			return NewObserver(report.Lat, report.Lon, report.Alt), nil
		}
	}

	if err := scanner.Err(); err != nil {
		return Observer{}, fmt.Errorf("gpsd read: %w", err)
	}

	return Observer{}, fmt.Errorf("gpsd: no fix obtained within %v", timeout)
}
