package security

import (
	"context"
	"strings"

	"ui_verification/domain/entities"
	"ui_verification/domain/interfaces"

	"github.com/sirupsen/logrus"
)

// SecurityLayer decides which steps change persisted application state.
// Structural scenarios may be retried and run in read-only mode; workflows may not.
type SecurityLayer struct {
	logger *logrus.Logger
}

func NewSecurityLayer(logger *logrus.Logger) *SecurityLayer {
	return &SecurityLayer{
		logger: logger,
	}
}

var (
	deletionKeywords = []string{
		"delete", "remove", "удалить", "удаление",
		"trash", "корзина", "clear", "очистить",
	}
	submitKeywords = []string{
		"submit", "save", "send", "confirm",
		"сохранить", "отправить", "подтвердить", "создать", "добавить",
	}
	// openers look like submits but only reveal a form
	openerPrefixes = []string{
		"добавить ", "add ", "create ",
	}
)

func (s *SecurityLayer) IsDestructiveStep(ctx context.Context, step entities.Step) bool {
	switch step.Kind {
	case entities.StepUpload:
		return true
	case entities.StepClick:
		return s.isDeletionClick(step) || s.isSubmitClick(step)
	default:
		return false
	}
}

func (s *SecurityLayer) ClassifyScenario(ctx context.Context, scenario entities.Scenario) entities.ScenarioKind {
	if scenario.Kind != entities.KindUnspecified {
		return scenario.Kind
	}

	// Setup is excluded: logging in does not change application data.
	for _, step := range append(append([]entities.Step{}, scenario.Steps...), scenario.Assertions...) {
		if s.IsDestructiveStep(ctx, step) {
			s.logger.WithFields(logrus.Fields{
				"scenario": scenario.Name,
				"step":     step.String(),
			}).Debug("Scenario classified as workflow")
			return entities.KindWorkflow
		}
	}
	return entities.KindStructural
}

func (s *SecurityLayer) GetStepRiskLevel(ctx context.Context, step entities.Step) string {
	if step.Kind == entities.StepClick && s.isDeletionClick(step) {
		return "high"
	}

	if s.IsDestructiveStep(ctx, step) {
		return "medium"
	}

	return "low"
}

func (s *SecurityLayer) isDeletionClick(step entities.Step) bool {
	return containsAny(locatorText(step.Target), deletionKeywords)
}

func (s *SecurityLayer) isSubmitClick(step entities.Step) bool {
	target := step.Target
	if target == nil {
		return false
	}

	// A submit button of a login form does not persist anything.
	if target.Strategy == entities.ByCSS && strings.Contains(target.Value, `type="submit"`) {
		return false
	}
	if target.Strategy == entities.ByRole && target.Role != "button" {
		return false
	}

	text := locatorText(target)
	for _, prefix := range openerPrefixes {
		if strings.HasPrefix(text, prefix) {
			return false
		}
	}
	return containsAny(text, submitKeywords)
}

// locatorText collects the lowercased names a locator matches on
func locatorText(l *entities.Locator) string {
	if l == nil {
		return ""
	}
	parts := []string{l.Value, l.HasText}
	return strings.ToLower(strings.TrimSpace(strings.Join(parts, " ")))
}

func containsAny(text string, keywords []string) bool {
	if text == "" {
		return false
	}
	for _, keyword := range keywords {
		if strings.Contains(text, keyword) {
			return true
		}
	}
	return false
}

// Ensure SecurityLayer implements SecurityLayer interface
var _ interfaces.SecurityLayer = (*SecurityLayer)(nil)
