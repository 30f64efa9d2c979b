package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/yourusername/exam-portal-api/internal/config"
	"github.com/yourusername/exam-portal-api/internal/domain/entity"
	pgRepo "github.com/yourusername/exam-portal-api/internal/repository/postgres"
	"github.com/yourusername/exam-portal-api/pkg/database"
)

// SeedFile описывает демонстрационные данные
type SeedFile struct {
	Exams             []SeedExam    `yaml:"exams"`
	PsychometricTests []SeedExam    `yaml:"psychometric_tests"`
	Profiles          []SeedProfile `yaml:"profiles"`
}

type SeedExam struct {
	Key             string           `yaml:"key"`
	Title           string           `yaml:"title"`
	TestType        string           `yaml:"test_type"`
	Estado          string           `yaml:"estado"`
	DuracionMinutos int              `yaml:"duracion_minutos"`
	OpensAt         *time.Time       `yaml:"opens_at"`
	ClosesAt        *time.Time       `yaml:"closes_at"`
	Questions       []SeedQuestion   `yaml:"questions"`
	Credentials     []SeedCredential `yaml:"credentials"`
}

type SeedQuestion struct {
	Text    string   `yaml:"text"`
	Options []string `yaml:"options"`
}

type SeedCredential struct {
	Username  string     `yaml:"username"`
	Email     string     `yaml:"email"`
	Password  string     `yaml:"password"`
	ExpiresAt *time.Time `yaml:"expires_at"`
}

type SeedProfile struct {
	Email       string   `yaml:"email"`
	FullName    string   `yaml:"full_name"`
	Assignments []string `yaml:"assignments"` // ключи экзаменов
}

// ParseSeed разбирает YAML и проверяет ссылки между разделами
func ParseSeed(data []byte) (*SeedFile, error) {
	var seed SeedFile
	if err := yaml.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("invalid seed yaml: %w", err)
	}

	keys := make(map[string]bool)
	for i := range seed.Exams {
		exam := &seed.Exams[i]
		if exam.TestType == "" {
			exam.TestType = entity.TestTypeReliability
		}
		if exam.TestType == entity.TestTypePsychometric || !entity.IsValidTestType(exam.TestType) {
			return nil, fmt.Errorf("exam %q: invalid test_type %q", exam.Title, exam.TestType)
		}
		keys[exam.Key] = true
	}
	for i := range seed.PsychometricTests {
		seed.PsychometricTests[i].TestType = entity.TestTypePsychometric
		keys[seed.PsychometricTests[i].Key] = true
	}
	for _, p := range seed.Profiles {
		for _, key := range p.Assignments {
			if !keys[key] {
				return nil, fmt.Errorf("profile %s: unknown exam key %q", p.Email, key)
			}
		}
	}
	return &seed, nil
}

func toQuestions(items []SeedQuestion) []entity.Question {
	questions := make([]entity.Question, len(items))
	for i, q := range items {
		questions[i] = entity.Question{Text: q.Text, Options: entity.StringArray(q.Options), Position: i + 1}
	}
	return questions
}

type target struct {
	testType string
	id       uint
}

func main() {
	path := flag.String("file", "seed/demo.yaml", "path to seed yaml")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	data, err := os.ReadFile(*path)
	if err != nil {
		log.Fatalf("Failed to read %s: %v", *path, err)
	}
	seed, err := ParseSeed(data)
	if err != nil {
		log.Fatal(err)
	}

	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), false)
	if err != nil {
		log.Fatal(err)
	}
	if err := database.MigrateDB(db); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	examRepo := pgRepo.NewExamRepo(db)
	credentialRepo := pgRepo.NewCredentialRepo(db)
	userRepo := pgRepo.NewUserRepo(db)
	assignmentRepo := pgRepo.NewAssignmentRepo(db)

	targets := make(map[string]target)
	var credentials []entity.Credential

	for _, item := range seed.Exams {
		estado := item.Estado
		if estado == "" {
			estado = entity.ExamStatusActive
		}
		exam := &entity.Exam{
			Title:           item.Title,
			TestType:        item.TestType,
			Estado:          estado,
			FechaApertura:   item.OpensAt,
			FechaCierre:     item.ClosesAt,
			DuracionMinutos: item.DuracionMinutos,
			Questions:       toQuestions(item.Questions),
		}
		if err := examRepo.Create(ctx, exam); err != nil {
			log.Fatalf("Failed to create exam %q: %v", item.Title, err)
		}
		targets[item.Key] = target{testType: item.TestType, id: exam.ID}
		for _, c := range item.Credentials {
			examID := exam.ID
			credentials = append(credentials, entity.Credential{
				Username: c.Username, UserEmail: c.Email, Password: c.Password,
				TestType: item.TestType, ExamID: &examID, ExpiresAt: c.ExpiresAt,
			})
		}
		log.Printf("[Seed] exam %d %q (%d questions)", exam.ID, exam.Title, len(exam.Questions))
	}

	for _, item := range seed.PsychometricTests {
		test := &entity.PsychometricTest{
			Name:            item.Title,
			DuracionMinutos: item.DuracionMinutos,
			IsActive:        item.Estado == "" || item.Estado == entity.ExamStatusActive,
			Questions:       toQuestions(item.Questions),
		}
		if err := examRepo.CreatePsychometricTest(ctx, test); err != nil {
			log.Fatalf("Failed to create psychometric test %q: %v", item.Title, err)
		}
		targets[item.Key] = target{testType: entity.TestTypePsychometric, id: test.ID}
		for _, c := range item.Credentials {
			testID := test.ID
			credentials = append(credentials, entity.Credential{
				Username: c.Username, UserEmail: c.Email, Password: c.Password,
				TestType: entity.TestTypePsychometric, PsychometricTestID: &testID, ExpiresAt: c.ExpiresAt,
			})
		}
		log.Printf("[Seed] psychometric test %d %q", test.ID, test.Name)
	}

	for i := range credentials {
		if err := credentialRepo.Create(ctx, &credentials[i]); err != nil {
			log.Fatalf("Failed to create credential %s: %v", credentials[i].Username, err)
		}
	}
	log.Printf("[Seed] %d credentials", len(credentials))

	for _, p := range seed.Profiles {
		user := &entity.User{Email: p.Email, FullName: p.FullName, CanLogin: true}
		if err := userRepo.Create(ctx, user); err != nil {
			log.Fatalf("Failed to create profile %s: %v", p.Email, err)
		}
		for _, key := range p.Assignments {
			t := targets[key]
			id := t.id
			assignment := &entity.Assignment{
				UserID: user.ID, TestType: t.testType,
				Status: entity.AssignmentStatusPending, AssignedAt: time.Now(),
			}
			if t.testType == entity.TestTypePsychometric {
				assignment.PsychometricTestID = &id
			} else {
				assignment.ExamID = &id
			}
			if err := assignmentRepo.Create(ctx, assignment); err != nil {
				log.Fatalf("Failed to assign %s to %s: %v", key, p.Email, err)
			}
		}
	}
	log.Printf("[Seed] %d profiles", len(seed.Profiles))
}
