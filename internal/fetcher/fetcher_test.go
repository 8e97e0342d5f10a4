package fetcher

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestNavSeriesSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mf/119551" {
			t.Fatalf("路径不正确: %s", r.URL.Path)
		}
		if r.Header.Get("User-Agent") != "test" {
			t.Fatalf("User-Agent 未设置")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "SUCCESS",
			"data": []map[string]string{
				{"date": "03-01-2024", "nav": "101.2500"},
				{"date": "02-01-2024", "nav": "100.0000"},
			},
		})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL, Timeout: time.Second, UserAgent: "test"}, noopLogger())
	points, err := c.NavSeries(context.Background(), "119551")
	if err != nil {
		t.Fatalf("成功响应不应报错: %v", err)
	}
	if len(points) != 2 {
		t.Fatalf("期望 2 个点, 实际 %d", len(points))
	}
	if points[0].NAV != 101.25 || points[0].FundID != "119551" {
		t.Fatalf("解析结果不正确: %#v", points[0])
	}
	if !points[1].Date.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("日期解析不正确: %s", points[1].Date)
	}
}

func TestBenchmarkSeriesISODates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"date": "2024-01-02", "value": "21710.8"}},
		})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, noopLogger())
	points, err := c.BenchmarkSeries(context.Background(), "NIFTY 100 TRI")
	if err != nil {
		t.Fatalf("不应报错: %v", err)
	}
	if len(points) != 1 || points[0].Value != 21710.8 || points[0].BenchmarkID != "NIFTY 100 TRI" {
		t.Fatalf("解析结果不正确: %#v", points)
	}
}

func TestNotFoundIsEmptyHistory(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, noopLogger())
	points, err := c.NavSeries(context.Background(), "missing")
	if err != nil {
		t.Fatalf("404 应视为空序列: %v", err)
	}
	if len(points) != 0 {
		t.Fatalf("期望空序列")
	}
}

func TestHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_ = json.NewEncoder(w).Encode(map[string]string{"message": "upstream down"})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, noopLogger())
	if _, err := c.NavSeries(context.Background(), "1"); err == nil {
		t.Fatal("HTTP 502 应返回错误")
	}
}

func TestMalformedValue(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]string{{"date": "02-01-2024", "nav": "N.A."}},
		})
	}))
	defer srv.Close()

	c := New(Options{BaseURL: srv.URL}, noopLogger())
	if _, err := c.NavSeries(context.Background(), "1"); err == nil {
		t.Fatal("非法 NAV 应返回错误")
	}
}

func TestMissingBaseURL(t *testing.T) {
	c := New(Options{}, noopLogger())
	if _, err := c.BenchmarkSeries(context.Background(), "X"); err == nil {
		t.Fatal("缺少 base url 时应返回错误")
	}
}

func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}
