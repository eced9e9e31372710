package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/quiz-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/quiz-scheduler-api/pkg/errors"
	"github.com/noah-isme/quiz-scheduler-api/pkg/export"
)

type attemptLister interface {
	ListByQuiz(ctx context.Context, quizID string) ([]models.QuizAttempt, error)
}

type tableRenderer interface {
	Render(table export.Table) ([]byte, error)
}

// ExportService produces attempt reports for a quiz in CSV or PDF form.
// Times in the report are rendered in the quiz's authoring timezone so the
// educator reads them the way they scheduled them.
type ExportService struct {
	quizzes   quizReader
	attempts  attemptLister
	timezones *TimezoneService
	renderers map[string]tableRenderer
	logger    *zap.Logger
}

// NewExportService constructs ExportService with CSV and PDF renderers.
func NewExportService(quizzes quizReader, attempts attemptLister, timezones *TimezoneService, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		quizzes:   quizzes,
		attempts:  attempts,
		timezones: timezones,
		renderers: map[string]tableRenderer{
			"csv": export.NewCSVRenderer(),
			"pdf": export.NewPDFRenderer(),
		},
		logger: logger,
	}
}

// ExportResult carries rendered report bytes with serving metadata.
type ExportResult struct {
	Content     []byte
	ContentType string
	Filename    string
}

var exportContentTypes = map[string]string{
	"csv": "text/csv",
	"pdf": "application/pdf",
}

// ExportAttempts renders the attempt report for a quiz. Supported formats
// are "csv" and "pdf".
func (s *ExportService) ExportAttempts(ctx context.Context, quizID, format string) (*ExportResult, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	quiz, err := s.quizzes.FindByID(ctx, quizID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "quiz not found")
		}
		return nil, storeUnavailable(err, "failed to load quiz")
	}

	attempts, err := s.attempts.ListByQuiz(ctx, quizID)
	if err != nil {
		return nil, storeUnavailable(err, "failed to list attempts")
	}

	content, err := renderer.Render(s.buildTable(quiz, attempts))
	if err != nil {
		return nil, appErrors.Wrap(err, "RENDER_FAILED", http.StatusInternalServerError, "failed to render report")
	}

	s.logger.Info("attempt report exported",
		zap.String("quiz_id", quizID),
		zap.String("format", format),
		zap.Int("attempts", len(attempts)))
	return &ExportResult{
		Content:     content,
		ContentType: exportContentTypes[format],
		Filename:    fmt.Sprintf("quiz-%s-attempts.%s", quizID, format),
	}, nil
}

func (s *ExportService) buildTable(quiz *models.Quiz, attempts []models.QuizAttempt) export.Table {
	zone := quiz.AuthoringTimezone
	subtitle := ""
	if start := EffectiveStartTime(quiz); start != nil {
		subtitle = fmt.Sprintf("Scheduled %s, %d minutes", s.timezones.FormatInZone(*start, zone), quiz.DurationMinutes)
	}

	rows := make([][]string, 0, len(attempts))
	for _, attempt := range attempts {
		submitted := ""
		if attempt.EndTimeUTC != nil {
			submitted = s.timezones.FormatInZone(*attempt.EndTimeUTC, zone)
		}
		score := ""
		if attempt.Score != nil {
			score = fmt.Sprintf("%.0f%%", *attempt.Score*100)
		}
		rows = append(rows, []string{
			attempt.StudentID,
			string(attempt.Status),
			s.timezones.FormatInZone(attempt.StartTimeUTC, zone),
			submitted,
			score,
		})
	}

	return export.Table{
		Title:    quiz.Title,
		Subtitle: subtitle,
		Columns:  []string{"Student", "Status", "Started", "Submitted", "Score"},
		Rows:     rows,
	}
}
