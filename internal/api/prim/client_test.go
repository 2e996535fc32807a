package prim

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"compress/zlib"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stopMonitoringOK = `{"Siri":{"ServiceDelivery":{"ResponseTimestamp":"2024-03-12T08:00:00Z","StopMonitoringDelivery":[{
  "Status":"true",
  "MonitoredStopVisit":[
    {"MonitoredVehicleJourney":{
      "LineRef":{"value":"STIF:Line::C01742:"},
      "DirectionName":[{"value":"Saint-Germain-en-Laye"}],
      "DestinationRef":{"value":"STIF:StopPoint:Q:411386:"},
      "DestinationName":[{"value":"Saint-Germain-en-Laye"}],
      "JourneyNote":[{"value":"QIKI"}],
      "MonitoredCall":{"VehicleAtStop":false,"ExpectedArrivalTime":"2024-03-12T08:04:00.000Z","ArrivalStatus":"onTime","ArrivalPlatformName":{"value":"A"}}
    }},
    {"MonitoredVehicleJourney":{
      "LineRef":{"value":"STIF:Line::C01742:"},
      "DestinationRef":{"value":"STIF:StopPoint:Q:411387:"},
      "DestinationName":[{"value":"Boissy-Saint-Léger"}],
      "MonitoredCall":{"VehicleAtStop":false}
    }}
  ]}]}}}`

const stopMonitoringUnknown = `{"Siri":{"ServiceDelivery":{"StopMonitoringDelivery":[{
  "Status":"false",
  "ErrorCondition":{"ErrorInformation":{"ErrorText":"Le couple MonitoringRef/LineRef n'existe pas"}}
}]}}}`

const generalMessageOK = `{"Siri":{"ServiceDelivery":{"GeneralMessageDelivery":[{
  "Status":true,
  "InfoMessage":[{
    "RecordedAtTime":"2024-03-12T06:00:00.000Z",
    "ValidUntilTime":"2024-03-12T22:00:00.000Z",
    "InfoMessageIdentifier":{"value":"IDFM:msg:1"},
    "InfoMessageVersion":2,
    "InfoChannelRef":{"value":"Perturbation"},
    "Content":{"Message":[
      {"MessageType":"SHORT_MESSAGE","MessageText":{"value":"Travaux"}},
      {"MessageType":"TEXT_ONLY","MessageText":{"value":"<p>Trafic <b>interrompu</b></p>"}}
    ]}
  }]}]}}}`

const lineReportsOK = `{"disruptions":[
  {"id":"d1","status":"active","cause":"travaux","category":"Incidents","severity":{"name":"bloquante","effect":"NO_SERVICE"},
   "tags":["Ascenseur"],"application_periods":[{"begin":"20240312T050000","end":"20240312T230000"}],
   "messages":[{"text":"Ascenseur HS","channel":{"name":"titre"}}]},
  {"id":"d2","status":"active","cause":"perturbation","category":"Incidents","severity":{"name":"perturbée","effect":"REDUCED_SERVICE"},
   "tags":[{"id":"t1","name":"Travaux"}],"application_periods":[{"begin":"20240312T050000","end":"20240312T230000"}],
   "messages":[{"text":"Travaux","channel":{"name":"titre"}},{"text":"<p>Trains supprimés</p>","channel":{"name":"moteur"}}]}
]}`

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestClient(t *testing.T, handler http.HandlerFunc, timeout time.Duration) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("secret", timeout, Endpoints{
		StopMonitoring: srv.URL + "/stop-monitoring",
		GeneralMessage: srv.URL + "/general-message",
		LineReports:    srv.URL + "/line_reports/line:IDFM:%s/line_reports",
	}, testLogger())
}

func TestStopMonitoring(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("apiKey"))
		assert.Equal(t, "STIF:StopPoint:Q:473921:", r.URL.Query().Get("MonitoringRef"))
		assert.Equal(t, "STIF:Line::C01742:", r.URL.Query().Get("LineRef"))
		io.WriteString(w, stopMonitoringOK)
	}, time.Second)

	visits, err := c.StopMonitoring(context.Background(), "473921", "C01742")
	require.NoError(t, err)
	assert.Len(t, visits, 2)
}

func TestStopMonitoringFallsBackWithoutLine(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.URL.Query().Get("LineRef") != "" {
			w.WriteHeader(http.StatusBadRequest)
			io.WriteString(w, stopMonitoringUnknown)
			return
		}
		io.WriteString(w, stopMonitoringOK)
	}, time.Second)

	visits, err := c.StopMonitoring(context.Background(), "STIF:StopArea:SP:71517:", "C01742")
	require.NoError(t, err)
	assert.Len(t, visits, 2)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStopMonitoringFallbackHappensOnce(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, stopMonitoringUnknown)
	}, time.Second)

	visits, err := c.StopMonitoring(context.Background(), "473921", "C01742")
	require.NoError(t, err)
	assert.Empty(t, visits)
	assert.Equal(t, int32(2), calls.Load())
}

func TestStopMonitoringUnknownWithoutLineIsNoData(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		io.WriteString(w, stopMonitoringUnknown)
	}, time.Second)

	visits, err := c.StopMonitoring(context.Background(), "473921", "")
	require.NoError(t, err)
	assert.Empty(t, visits)
	assert.Equal(t, int32(1), calls.Load())
}

func TestStopMonitoringTimeoutYieldsNothing(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}, 50*time.Millisecond)

	visits, err := c.StopMonitoring(context.Background(), "473921", "")
	assert.NoError(t, err)
	assert.Empty(t, visits)
}

func TestStopMonitoringUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	endpoint := srv.URL
	srv.Close()

	c := NewClient("secret", time.Second, Endpoints{StopMonitoring: endpoint}, testLogger())
	_, err := c.StopMonitoring(context.Background(), "473921", "")
	assert.Error(t, err)
}

func TestGeneralMessagesGzip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "STIF:Line::C01742:", r.URL.Query().Get("LineRef"))
		assert.Contains(t, r.Header.Get("Accept-Encoding"), "gzip")
		var buf bytes.Buffer
		zw := gzip.NewWriter(&buf)
		io.WriteString(zw, generalMessageOK)
		zw.Close()
		w.Header().Set("Content-Encoding", "gzip")
		w.Write(buf.Bytes())
	}, time.Second)

	msgs, err := c.GeneralMessages(context.Background(), "C01742")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, 2, msgs[0].InfoMessageVersion)
}

func TestGeneralMessagesDeflate(t *testing.T) {
	tests := []struct {
		name   string
		writer func(io.Writer) io.WriteCloser
	}{
		{"zlib", func(w io.Writer) io.WriteCloser { return zlib.NewWriter(w) }},
		{"raw", func(w io.Writer) io.WriteCloser {
			fw, _ := flate.NewWriter(w, flate.DefaultCompression)
			return fw
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				var buf bytes.Buffer
				zw := tt.writer(&buf)
				io.WriteString(zw, generalMessageOK)
				zw.Close()
				w.Header().Set("Content-Encoding", "deflate")
				w.Write(buf.Bytes())
			}, time.Second)

			msgs, err := c.GeneralMessages(context.Background(), "C01742")
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			assert.Equal(t, 2, msgs[0].InfoMessageVersion)
		})
	}
}

func TestGeneralMessagesCorruptGzip(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Encoding", "gzip")
		io.WriteString(w, "not gzip")
	}, time.Second)

	msgs, err := c.GeneralMessages(context.Background(), "C01742")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestGeneralMessagesFailedStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"Siri":{"ServiceDelivery":{"GeneralMessageDelivery":[{"Status":"false","ErrorCondition":{"OtherError":{"ErrorText":"boom"}}}]}}}`)
	}, time.Second)

	msgs, err := c.GeneralMessages(context.Background(), "C01742")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestLineReportsElevatorFilter(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/line_reports/line:IDFM:C01742/line_reports", r.URL.Path)
		io.WriteString(w, lineReportsOK)
	}, time.Second)

	excluded, err := c.LineReports(context.Background(), "C01742", false)
	require.NoError(t, err)
	require.Len(t, excluded, 1)
	assert.Equal(t, "d2", excluded[0].ID)

	all, err := c.LineReports(context.Background(), "C01742", true)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestUnknownIdentifiers(t *testing.T) {
	tests := []struct {
		name string
		cond *ErrorCondition
		want bool
	}{
		{"nil", nil, false},
		{"pair", &ErrorCondition{ErrorInformation: &ErrorInfo{ErrorText: "Le couple MonitoringRef/LineRef n'existe pas"}}, true},
		{"ids", &ErrorCondition{ErrorInformation: &ErrorInfo{ErrorText: "La requête contient des identifiants qui sont inconnus"}}, true},
		{"invalid refs", &ErrorCondition{InvalidDataReferencesError: &ErrorInfo{}}, true},
		{"other", &ErrorCondition{OtherError: &ErrorInfo{ErrorText: "Service indisponible"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.UnknownIdentifiers())
		})
	}
}
