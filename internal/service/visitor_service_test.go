package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type visitorSink struct {
	rows []*model.VisitorLog
	err  error
}

func (s *visitorSink) Create(_ context.Context, v *model.VisitorLog) error {
	if s.err != nil {
		return s.err
	}
	s.rows = append(s.rows, v)
	return nil
}

func TestTrackVisitor(t *testing.T) {
	sink := &visitorSink{}
	svc := service.NewVisitorService(sink)

	require.NoError(t, svc.Track(context.Background(), service.Visit{
		PageURL:   "/browse" + strings.Repeat("x", 300),
		IPAddress: "",
		UserAgent: " ",
	}))
	require.Len(t, sink.rows, 1)
	row := sink.rows[0]
	assert.Len(t, row.PageURL, 255)
	assert.Equal(t, "unknown", row.IPAddress)
	assert.Equal(t, "unknown", row.UserAgent)
	assert.Equal(t, "", row.Referrer)

	require.NoError(t, svc.Track(context.Background(), service.Visit{
		PageURL:   "/",
		IPAddress: "203.0.113.9",
		UserAgent: "curl/8",
		Referrer:  "https://example.com",
	}))
	assert.Equal(t, "203.0.113.9", sink.rows[1].IPAddress)
	assert.Equal(t, "https://example.com", sink.rows[1].Referrer)
}

func TestTrackVisitorStoreFailure(t *testing.T) {
	svc := service.NewVisitorService(&visitorSink{err: errors.New("db down")})
	err := svc.Track(context.Background(), service.Visit{PageURL: "/"})
	assert.ErrorIs(t, err, service.ErrPersistence)
}
