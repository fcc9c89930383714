package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-donations/app/astrology"
)

type fakeAstrologyClient struct {
	data   json.RawMessage
	err    error
	called string
	got    []astrology.BirthDetails
}

func (c *fakeAstrologyClient) record(name string, births ...astrology.BirthDetails) (json.RawMessage, error) {
	c.called = name
	c.got = births
	return c.data, c.err
}

func (c *fakeAstrologyClient) Kundali(_ context.Context, b astrology.BirthDetails) (json.RawMessage, error) {
	return c.record("kundli", b)
}

func (c *fakeAstrologyClient) Matching(_ context.Context, first, second astrology.BirthDetails) (json.RawMessage, error) {
	return c.record("matching", first, second)
}

func (c *fakeAstrologyClient) KaalSarpDosha(_ context.Context, b astrology.BirthDetails) (json.RawMessage, error) {
	return c.record("kalsarp", b)
}

func (c *fakeAstrologyClient) SadeSati(_ context.Context, b astrology.BirthDetails) (json.RawMessage, error) {
	return c.record("sade-sati", b)
}

func (c *fakeAstrologyClient) MangalDosha(_ context.Context, b astrology.BirthDetails) (json.RawMessage, error) {
	return c.record("mangal", b)
}

const birthBody = `{"dob":"1990-04-12","tob":"06:45","lat":26.14,"lon":91.73}`

func TestKundaliProxiesBirthDetails(t *testing.T) {
	client := &fakeAstrologyClient{data: json.RawMessage(`{"nakshatra":"Rohini"}`)}
	ctrl := NewAstrologyController(client)
	ctx, rec := jsonContext(http.MethodPost, "/astrology/kundali", birthBody)

	if err := ctrl.Kundali(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if client.called != "kundli" || len(client.got) != 1 {
		t.Fatalf("expected one kundli lookup, got %s %v", client.called, client.got)
	}
	if got := client.got[0]; got.Lat != 26.14 || got.TZ != 5.5 || got.Datetime() != "1990-04-12T06:45:00+05:30" {
		t.Fatalf("unexpected birth details %+v", got)
	}
	if rec.Body.String() != `{"source":"prokerala","data":{"nakshatra":"Rohini"}}`+"\n" {
		t.Fatalf("expected wrapped upstream payload, got %s", rec.Body.String())
	}
}

func TestDoshaLookupsRouteToClient(t *testing.T) {
	cases := []struct {
		name   string
		handle func(*AstrologyController, echo.Context) error
		want   string
	}{
		{"kaal sarp", (*AstrologyController).KaalSarpDosh, "kalsarp"},
		{"sade sati", (*AstrologyController).SadeSati, "sade-sati"},
		{"mangal", (*AstrologyController).MangalDosh, "mangal"},
	}

	for _, tc := range cases {
		client := &fakeAstrologyClient{data: json.RawMessage(`{}`)}
		ctrl := NewAstrologyController(client)
		ctx, rec := jsonContext(http.MethodPost, "/astrology/x", birthBody)
		if err := tc.handle(ctrl, ctx); err != nil {
			t.Fatalf("%s: expected no error, got %v", tc.name, err)
		}
		if rec.Code != http.StatusOK || client.called != tc.want {
			t.Fatalf("%s: expected 200 via %s, got %d via %s", tc.name, tc.want, rec.Code, client.called)
		}
	}
}

func TestMatchingSendsBothCharts(t *testing.T) {
	client := &fakeAstrologyClient{data: json.RawMessage(`{"guna_milan":{"total_points":27}}`)}
	ctrl := NewAstrologyController(client)
	body := `{"person1":{"dob":"1994-02-01","tob":"10:00","lat":19.07,"lon":72.87},"person2":{"dob":"1992-08-15","tob":"22:30","lat":28.61,"lon":77.2,"tz":5.5}}`
	ctx, rec := jsonContext(http.MethodPost, "/astrology/matching", body)

	if err := ctrl.Matching(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(client.got) != 2 || client.got[0].DOB != "1994-02-01" || client.got[1].Lon != 77.2 {
		t.Fatalf("unexpected charts %+v", client.got)
	}
}

func TestMatchingMissingPerson(t *testing.T) {
	ctrl := NewAstrologyController(&fakeAstrologyClient{})
	ctx, rec := jsonContext(http.MethodPost, "/astrology/matching", `{"person1":`+birthBody+`}`)

	if err := ctrl.Matching(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest || decodeError(t, rec) != "person2 is required" {
		t.Fatalf("expected person2 error, got %d %s", rec.Code, rec.Body.String())
	}
}

func TestKundaliMissingCoordinates(t *testing.T) {
	ctrl := NewAstrologyController(&fakeAstrologyClient{})
	ctx, rec := jsonContext(http.MethodPost, "/astrology/kundali", `{"dob":"1990-04-12","tob":"06:45"}`)

	if err := ctrl.Kundali(ctx); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestAstrologyLookupErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{astrology.ErrNotConfigured, http.StatusServiceUnavailable},
		{fmt.Errorf("%w: status 500", astrology.ErrUpstream), http.StatusBadGateway},
		{fmt.Errorf("boom"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		ctrl := NewAstrologyController(&fakeAstrologyClient{err: tc.err})
		ctx, rec := jsonContext(http.MethodPost, "/astrology/sade-sati", birthBody)
		if err := ctrl.SadeSati(ctx); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if rec.Code != tc.want {
			t.Fatalf("expected %d for %v, got %d", tc.want, tc.err, rec.Code)
		}
	}
}
