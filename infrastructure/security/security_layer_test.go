package security

import (
	"context"
	"testing"

	"ui_verification/application/catalog"
	"ui_verification/domain/entities"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLayer() *SecurityLayer {
	logger, _ := test.NewNullLogger()
	return NewSecurityLayer(logger)
}

func TestIsDestructiveStep(t *testing.T) {
	tests := []struct {
		name string
		step entities.Step
		want bool
	}{
		{"save button", entities.Click(entities.Role("button", "Сохранить отзыв")), true},
		{"delete menu item", entities.Click(entities.Role("menuitem", "Удалить")), true},
		{"upload", entities.Upload(entities.CSS(".cursor-pointer"), "a.jpg"), true},
		{"form opener", entities.Click(entities.Role("button", "Добавить отзыв")), false},
		{"login submit", entities.Click(entities.CSS(`button[type="submit"]`)), false},
		{"tab", entities.Click(entities.Role("tab", "Отзывы")), false},
		{"cancel", entities.Click(entities.Role("button", "Отмена")), false},
		{"fill", entities.Fill(entities.Label("Имя автора"), "Сохранить"), false},
		{"wait", entities.WaitForVisible(entities.Role("button", "Сохранить"), 0), false},
		{"navigate", entities.Navigate("http://localhost:3000/admin"), false},
	}

	layer := newLayer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, layer.IsDestructiveStep(context.Background(), tt.step))
		})
	}
}

func TestGetStepRiskLevel(t *testing.T) {
	layer := newLayer()
	ctx := context.Background()

	assert.Equal(t, "high", layer.GetStepRiskLevel(ctx, entities.Click(entities.Role("button", "Удалить"))))
	assert.Equal(t, "medium", layer.GetStepRiskLevel(ctx, entities.Click(entities.Role("button", "Сохранить"))))
	assert.Equal(t, "low", layer.GetStepRiskLevel(ctx, entities.Click(entities.Role("tab", "Отзывы"))))
}

func TestClassifyScenario(t *testing.T) {
	layer := newLayer()
	ctx := context.Background()
	step := entities.WaitForVisible(entities.Role("heading", "Карточки"), 0)

	declared := entities.Scenario{Name: "x", Kind: entities.KindWorkflow, Steps: []entities.Step{step}}
	assert.Equal(t, entities.KindWorkflow, layer.ClassifyScenario(ctx, declared))

	// login clicks in setup do not make a scenario a workflow
	readOnly := entities.Scenario{
		Name:  "y",
		Setup: []entities.Step{entities.Click(entities.Role("button", "Отправить"))},
		Steps: []entities.Step{step},
	}
	assert.Equal(t, entities.KindStructural, layer.ClassifyScenario(ctx, readOnly))

	mutating := entities.Scenario{
		Name:  "z",
		Steps: []entities.Step{entities.Click(entities.Role("button", "Сохранить"))},
	}
	assert.Equal(t, entities.KindWorkflow, layer.ClassifyScenario(ctx, mutating))
}

func TestDeclaredKindsMatchClassification(t *testing.T) {
	layer := newLayer()
	c := catalog.Default(catalog.Fixtures{BaseURL: "http://localhost:3000", Salt: "1"})

	for _, name := range c.Names() {
		s, ok := c.Get(name)
		require.True(t, ok)
		declared := s.Kind
		s.Kind = entities.KindUnspecified
		assert.Equal(t, declared, layer.ClassifyScenario(context.Background(), s), name)
	}
}
