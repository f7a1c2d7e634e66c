// Package catalog holds the named verification scenarios and resolves their
// declared ordering constraints.
package catalog

import (
	"fmt"
	"path/filepath"
	"time"

	"ui_verification/domain/entities"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
)

// Fixtures are the run-scoped values scenarios are built from
type Fixtures struct {
	BaseURL     string
	Email       string
	Password    string
	AvatarPath  string
	ArtifactDir string
	// Salt makes record names unique per run
	Salt string
}

// NewSalt - timestamp plus a short random suffix
func NewSalt() string {
	return time.Now().Format("20060102150405") + "-" + uuid.NewString()[:8]
}

// URL joins path onto the base URL
func (f Fixtures) URL(path string) string {
	return f.BaseURL + path
}

// Author returns a salted review author name. tag keeps names of
// different scenarios apart within one run.
func (f Fixtures) Author(tag string) string {
	if tag == "" {
		return "Тестовый Автор " + f.Salt
	}
	return fmt.Sprintf("Тестовый Автор %s %s", tag, f.Salt)
}

// BackgroundName - salted name of a created background image
func (f Fixtures) BackgroundName() string {
	return "Тестовый задник " + f.Salt
}

// Evidence - path of a scheduled screenshot
func (f Fixtures) Evidence(name string) string {
	file := name + ".png"
	if f.Salt != "" {
		file = name + "-" + f.Salt + ".png"
	}
	return filepath.Join(f.ArtifactDir, "evidence", file)
}

// LoginSetup signs in to the admin panel and waits for the dashboard
func LoginSetup(f Fixtures) []entities.Step {
	return []entities.Step{
		entities.Navigate(f.URL("/admin")),
		entities.Fill(entities.Label("Email"), f.Email),
		entities.Fill(entities.Label("Пароль"), f.Password),
		entities.Click(entities.Role("button", "Войти")),
		entities.WaitForVisible(entities.Role("heading", "Карточки"), 15*time.Second),
	}
}

// Catalog is an ordered, name-indexed set of scenarios
type Catalog struct {
	scenarios []entities.Scenario
	index     map[string]int
}

// New validates scenarios and their dependencies
func New(scenarios ...entities.Scenario) (*Catalog, error) {
	c := &Catalog{index: make(map[string]int)}
	if err := c.Add(scenarios...); err != nil {
		return nil, err
	}
	return c, nil
}

// Add appends scenarios. Names must be unique and every dependency must be
// known once the whole batch is added.
func (c *Catalog) Add(scenarios ...entities.Scenario) error {
	for _, s := range scenarios {
		if err := s.Validate(); err != nil {
			return err
		}
		if _, exists := c.index[s.Name]; exists {
			return fmt.Errorf("duplicate scenario %q", s.Name)
		}
		c.index[s.Name] = len(c.scenarios)
		c.scenarios = append(c.scenarios, s)
	}

	for _, s := range c.scenarios {
		for _, dep := range s.DependsOn {
			if _, ok := c.index[dep]; !ok {
				return fmt.Errorf("scenario %q depends on unknown scenario %q", s.Name, dep)
			}
		}
	}
	return nil
}

// Names - scenario names in catalog order
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.scenarios))
	for _, s := range c.scenarios {
		names = append(names, s.Name)
	}
	return names
}

// Get - scenario by name
func (c *Catalog) Get(name string) (entities.Scenario, bool) {
	i, ok := c.index[name]
	if !ok {
		return entities.Scenario{}, false
	}
	return c.scenarios[i], true
}

// Order returns the selected scenarios with their transitive dependencies,
// every dependency before its dependents. Without names the whole catalog is
// ordered. Ties keep catalog order.
func (c *Catalog) Order(names ...string) ([]entities.Scenario, error) {
	if len(names) == 0 {
		names = c.Names()
	}

	selected := mapset.NewThreadUnsafeSet[string]()
	for _, name := range names {
		if _, ok := c.index[name]; !ok {
			return nil, fmt.Errorf("unknown scenario %q", name)
		}
		selected.Add(name)
	}

	done := mapset.NewThreadUnsafeSet[string]()
	visiting := mapset.NewThreadUnsafeSet[string]()
	ordered := make([]entities.Scenario, 0, len(c.scenarios))

	var visit func(name string, path []string) error
	visit = func(name string, path []string) error {
		if done.Contains(name) {
			return nil
		}
		if visiting.Contains(name) {
			return fmt.Errorf("dependency cycle: %v -> %s", path, name)
		}
		visiting.Add(name)

		s := c.scenarios[c.index[name]]
		for _, dep := range s.DependsOn {
			if err := visit(dep, append(append([]string{}, path...), name)); err != nil {
				return err
			}
		}

		visiting.Remove(name)
		done.Add(name)
		ordered = append(ordered, s)
		return nil
	}

	for _, s := range c.scenarios {
		if !selected.Contains(s.Name) {
			continue
		}
		if err := visit(s.Name, nil); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// Default builds the admin panel and public site scenarios
func Default(f Fixtures) *Catalog {
	c, err := New(
		login(f),
		createReview(f),
		createReviewWithAvatar(f),
		publicReviewVisible(f),
		editReview(f),
		updateReview(f),
		createBackgroundImage(f),
		settingsPanelTabs(f),
		publicPageRender(f),
		imagesSectionStructure(f),
		reviewsSectionStructure(f),
	)
	if err != nil {
		panic(fmt.Sprintf("default catalog is invalid: %v", err))
	}
	return c
}

var (
	reviewsTab        = entities.Role("tab", "Отзывы")
	imagesTab         = entities.Role("tab", "Изображения")
	reviewsHeading    = entities.Role("heading", "Управление отзывами")
	imagesHeading     = entities.Role("heading", "Управление задниками карточек")
	newReviewHeading  = entities.Role("heading", "Добавить новый отзыв")
	newImageHeading   = entities.Role("heading", "Добавить новый задник")
	editReviewHeading = entities.Role("heading", "Редактирование отзыва")
	uploadDropzone    = entities.CSS(".cursor-pointer").Filter("Нажмите или перетащите")
)

func row(text string) entities.Locator {
	return entities.CSS("tr").Filter(text)
}

func login(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "login",
		Description: "Admin signs in and lands on the dashboard",
		Kind:        entities.KindStructural,
		Steps:       LoginSetup(f),
		Assertions: []entities.Step{
			entities.WaitForVisible(reviewsTab, 5*time.Second),
			entities.WaitForVisible(imagesTab, 5*time.Second),
		},
	}
}

func createReview(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "create-review",
		Description: "A review added in the admin panel closes the form",
		Kind:        entities.KindWorkflow,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(reviewsTab),
			entities.Click(entities.Role("button", "Добавить отзыв")),
			entities.WaitForVisible(newReviewHeading, 10*time.Second),
			entities.Fill(entities.Label("Имя автора"), f.Author("")),
			entities.Fill(entities.Label("Текст отзыва"), "Текст"),
			entities.Click(entities.Role("button", "Сохранить отзыв")),
		},
		Assertions: []entities.Step{
			entities.WaitForHidden(newReviewHeading, 10*time.Second),
		},
	}
}

func createReviewWithAvatar(f Fixtures) entities.Scenario {
	author := f.Author("с аватаром")
	return entities.Scenario{
		Name:        "create-review-with-avatar",
		Description: "A review with an uploaded avatar is saved and listed",
		Kind:        entities.KindWorkflow,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(reviewsTab),
			entities.WaitForVisible(reviewsHeading, 10*time.Second),
			entities.Click(entities.Role("button", "Добавить отзыв")),
			entities.WaitForVisible(newReviewHeading, 10*time.Second),
			entities.Fill(entities.Placeholder("Иван Иванов"), author),
			entities.Fill(entities.Placeholder("Ваш отзыв..."), reviewText),
			entities.Upload(uploadDropzone, f.AvatarPath),
			entities.WaitForVisible(entities.AltText("Загрузить аватар"), 20*time.Second),
			entities.Click(entities.Role("button", "Сохранить отзыв")),
			entities.WaitForHidden(newReviewHeading, 10*time.Second),
		},
		Assertions: []entities.Step{
			entities.WaitForVisible(row(author), 10*time.Second),
		},
	}
}

const reviewText = "Это тестовый отзыв, созданный для проверки полного цикла работы."

func publicReviewVisible(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "public-review-visible",
		Description: "The review created with an avatar shows on the public page",
		Kind:        entities.KindStructural,
		DependsOn:   []string{"create-review-with-avatar"},
		Steps: []entities.Step{
			entities.Navigate(f.URL("/reviews")),
			entities.WaitForVisible(entities.Role("heading", "Отзывы наших коллекционеров"), 10*time.Second),
			entities.Screenshot(f.Evidence("public-review")),
		},
		Assertions: []entities.Step{
			entities.WaitForVisible(entities.Text(f.Author("с аватаром")), 10*time.Second),
			entities.WaitForVisible(entities.Text(reviewText).Nearest(), 10*time.Second),
		},
	}
}

func editReview(f Fixtures) entities.Scenario {
	author := f.Author("")
	return entities.Scenario{
		Name:        "edit-review",
		Description: "The edit form opens from the row menu of an existing review",
		Kind:        entities.KindStructural,
		DependsOn:   []string{"create-review"},
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(reviewsTab),
			entities.WaitForVisible(row(author), 10*time.Second),
			entities.Click(entities.Role("button", "Открыть меню").Within(row(author))),
			entities.Click(entities.Role("button", "Изменить")),
			entities.WaitForVisible(editReviewHeading, 10*time.Second),
			entities.Screenshot(f.Evidence("review-edit-form")),
			entities.Click(entities.Role("button", "Отмена")),
		},
		Assertions: []entities.Step{
			entities.WaitForHidden(editReviewHeading, 10*time.Second),
		},
	}
}

func updateReview(f Fixtures) entities.Scenario {
	author := f.Author("")
	text := "Обновленный текст отзыва " + f.Salt
	return entities.Scenario{
		Name:        "update-review",
		Description: "An existing review gets a new rating and text",
		Kind:        entities.KindWorkflow,
		DependsOn:   []string{"create-review"},
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(reviewsTab),
			entities.WaitForVisible(row(author), 10*time.Second),
			entities.Click(entities.Role("button", "Открыть меню").Within(row(author))),
			entities.Click(entities.Role("button", "Изменить")),
			entities.WaitForVisible(editReviewHeading, 10*time.Second),
			entities.Click(entities.Label("Рейтинг")),
			entities.Click(entities.Role("option", "4 звезд")),
			entities.Fill(entities.Label("Текст отзыва"), text),
			entities.Click(entities.Role("button", "Сохранить изменения")),
		},
		Assertions: []entities.Step{
			entities.WaitForHidden(editReviewHeading, 10*time.Second),
			entities.WaitForVisible(entities.Text(text).Nearest(), 10*time.Second),
		},
	}
}

func createBackgroundImage(f Fixtures) entities.Scenario {
	name := f.BackgroundName()
	return entities.Scenario{
		Name:        "create-background-image",
		Description: "A background image is uploaded and saved",
		Kind:        entities.KindWorkflow,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(imagesTab),
			entities.WaitForVisible(imagesHeading, 10*time.Second),
			entities.Click(entities.Role("button", "Добавить задник")),
			entities.WaitForVisible(newImageHeading, 10*time.Second),
			entities.Fill(entities.Label("Название задника"), name),
			entities.Upload(uploadDropzone, f.AvatarPath),
			entities.WaitForVisible(entities.AltText("Загрузить задник"), 20*time.Second),
			entities.Click(entities.Role("button", "Сохранить").ExactMatch()),
			entities.WaitForHidden(newImageHeading, 10*time.Second),
		},
		Assertions: []entities.Step{
			entities.WaitForVisible(row(name), 10*time.Second),
		},
	}
}

func settingsPanelTabs(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "settings-panel-tabs",
		Description: "The settings drawer shows its tabs and runs a connection check",
		Kind:        entities.KindStructural,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(entities.CSS("button:has(svg.lucide-settings)")),
			entities.WaitForVisible(entities.Role("heading", "Настройки").ExactMatch(), 5*time.Second),
			entities.WaitForVisible(entities.Role("tab", "Подключение"), 5*time.Second),
			entities.Click(entities.Role("button", "Проверить соединение")),
			entities.WaitForVisible(entities.CSS("p").Filter("Последняя проверка:"), 5*time.Second),
			entities.Screenshot(f.Evidence("settings-panel")),
		},
		Assertions: []entities.Step{
			entities.WaitForVisible(entities.Role("tab", "Подключение"), 5*time.Second),
			entities.WaitForVisible(entities.Role("tab", "Интерфейс"), 5*time.Second),
			entities.WaitForVisible(entities.Role("tab", "Обслуживание"), 5*time.Second),
		},
	}
}

func publicPageRender(f Fixtures) entities.Scenario {
	banner := entities.Role("banner", "")
	return entities.Scenario{
		Name:        "public-page-render",
		Description: "The public home page renders its header and catalog link",
		Kind:        entities.KindStructural,
		Steps: []entities.Step{
			entities.Navigate(f.URL("/")),
			entities.WaitForVisible(banner, 15*time.Second),
			entities.Screenshot(f.Evidence("public-home")),
		},
		Assertions: []entities.Step{
			entities.WaitForVisible(entities.Role("link", "Каталог").Within(banner).Nearest(), 10*time.Second),
		},
	}
}

func imagesSectionStructure(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "images-section-structure",
		Description: "The backgrounds table has a description column and the add form opens",
		Kind:        entities.KindStructural,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(imagesTab),
			entities.WaitForVisible(imagesHeading, 10*time.Second),
			entities.WaitForVisible(entities.CSS("th").Filter("Описание"), 10*time.Second),
			entities.Click(entities.Role("button", "Добавить задник")),
			entities.WaitForVisible(newImageHeading, 10*time.Second),
			entities.Screenshot(f.Evidence("images-section")),
			entities.Click(entities.Role("button", "Отмена")),
		},
		Assertions: []entities.Step{
			entities.WaitForHidden(newImageHeading, 5*time.Second),
		},
	}
}

func reviewsSectionStructure(f Fixtures) entities.Scenario {
	return entities.Scenario{
		Name:        "reviews-section-structure",
		Description: "Removed status and email fields stay absent from the reviews section",
		Kind:        entities.KindStructural,
		Setup:       LoginSetup(f),
		Steps: []entities.Step{
			entities.Click(reviewsTab),
			entities.WaitForVisible(reviewsHeading, 10*time.Second),
			entities.WaitForHidden(entities.Role("columnheader", "Статус"), 5*time.Second),
			entities.Click(entities.Role("button", "Добавить отзыв")),
			entities.WaitForVisible(newReviewHeading, 10*time.Second),
			entities.Screenshot(f.Evidence("reviews-section")),
		},
		Assertions: []entities.Step{
			entities.WaitForHidden(entities.Label("Email автора"), 5*time.Second),
			entities.WaitForHidden(entities.Label("Статус"), 5*time.Second),
		},
	}
}
