package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"fractional-quest/backend/internal/gateway"
	"fractional-quest/backend/pkg/config"
	"fractional-quest/backend/pkg/logger"
	"go.uber.org/zap"
)

func main() {
	userID := flag.String("user-id", "", "User to seed (required)")
	email := flag.String("email", "", "Email hint for the graph user")
	firstName := flag.String("first-name", "", "First name hint")
	lastName := flag.String("last-name", "", "Last name hint")
	flag.Parse()

	if err := logger.Init("development"); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	log := logger.Get()
	if strings.TrimSpace(*userID) == "" {
		log.Error("-user-id is required")
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration", zap.Error(err))
	}
	if !cfg.GraphEnabled() {
		log.Fatal("Graph service not configured", zap.String("backend", cfg.GraphBackend))
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	g, closeGraph, err := gateway.NewGraphGateway(ctx, cfg)
	if err != nil {
		log.Fatal("Failed to create graph gateway", zap.Error(err))
	}
	defer closeGraph(context.Background())

	p := person{UserID: *userID, Email: *email, FirstName: *firstName, LastName: *lastName}
	added, err := seed(ctx, g, p)
	if err != nil {
		log.Fatal("Failed to seed user graph", zap.String("user_id", *userID), zap.Error(err))
	}

	log.Info("Seeded user graph",
		zap.String("user_id", *userID),
		zap.Int("skills", added.Skills),
		zap.Int("experiences", added.Experiences),
		zap.Int("facts", added.Facts),
	)
}

type person struct {
	UserID    string
	Email     string
	FirstName string
	LastName  string
}

func (p person) hints() map[string]string {
	hints := map[string]string{}
	if p.Email != "" {
		hints["email"] = p.Email
	}
	if p.FirstName != "" {
		hints["first_name"] = p.FirstName
	}
	if p.LastName != "" {
		hints["last_name"] = p.LastName
	}
	return hints
}

func (p person) displayName() string {
	if name := strings.TrimSpace(p.FirstName + " " + p.LastName); name != "" {
		return name
	}
	return p.UserID
}

type seedCounts struct {
	Skills      int
	Experiences int
	Facts       int
}

type demoSkill struct {
	Name        string
	Category    string
	Years       int
	Proficiency string
}

var demoSkills = []demoSkill{
	{"Product Strategy", "leadership", 12, "expert"},
	{"Go-to-Market", "strategy", 10, "expert"},
	{"Team Leadership", "leadership", 15, "expert"},
	{"AI/ML Product Development", "technical", 5, "advanced"},
	{"Startup Scaling", "strategy", 8, "expert"},
	{"Revenue Growth", "business", 10, "expert"},
	{"B2B SaaS", "domain", 12, "expert"},
	{"TypeScript", "technical", 6, "advanced"},
	{"Next.js", "technical", 4, "advanced"},
	{"Python", "technical", 8, "advanced"},
}

type demoExperience struct {
	Company   string
	Role      string
	StartYear int
	EndYear   int // 0 while current
	Industry  string
}

var demoExperiences = []demoExperience{
	{"Quest Network", "Founder & CEO", 2023, 0, "Technology"},
	{"Predeploy", "Co-Founder", 2024, 0, "AI/Dev Tools"},
	{"Tech Startup (Series B)", "Part-Time CPO", 2022, 2023, "FinTech"},
	{"Enterprise SaaS", "VP Product", 2019, 2022, "SaaS"},
}

// demoPayloads returns the profile, work history and preferences documents
func demoPayloads(p person) []gateway.Payload {
	skills := make([]map[string]interface{}, 0, len(demoSkills))
	skillNames := make([]string, 0, len(demoSkills))
	for _, s := range demoSkills {
		skills = append(skills, map[string]interface{}{
			"name":        s.Name,
			"category":    s.Category,
			"years":       s.Years,
			"proficiency": s.Proficiency,
		})
		skillNames = append(skillNames, s.Name)
	}

	experiences := make([]map[string]interface{}, 0, len(demoExperiences))
	companies := make([]string, 0, len(demoExperiences))
	for _, e := range demoExperiences {
		exp := map[string]interface{}{
			"company":   e.Company,
			"role":      e.Role,
			"startYear": e.StartYear,
			"isCurrent": e.EndYear == 0,
			"industry":  e.Industry,
		}
		if e.EndYear != 0 {
			exp["endYear"] = e.EndYear
		}
		experiences = append(experiences, exp)
		companies = append(companies, e.Company)
	}

	roles := []string{"Part-Time CPO", "Part-Time CTO", "Board Advisor"}

	return []gateway.Payload{
		{
			Type: gateway.PayloadProfessionalProfile,
			Data: map[string]interface{}{
				"person":  p.displayName(),
				"role":    "Part-Time Executive & Entrepreneur",
				"skills":  skills,
				"values":  skillNames,
				"context": "Seasoned part-time executive with 15+ years of experience in product, strategy, and technology leadership.",
			},
		},
		{
			Type: gateway.PayloadWorkHistory,
			Data: map[string]interface{}{
				"experiences": experiences,
				"values":      companies,
				"context":     "Founded multiple companies and held senior product/exec roles at high-growth startups.",
			},
		},
		{
			Type: gateway.PayloadJobPreferences,
			Data: map[string]interface{}{
				"preference_type": "role",
				"looking_for":     roles,
				"industries":      []string{"AI/ML", "SaaS", "FinTech", "Climate Tech"},
				"locations":       []string{"London", "Remote"},
				"day_rate_range":  "800-1500 GBP",
				"availability":    "2-3 days per week",
				"values":          roles,
				"context":         "Open to part-time C-level roles in technology companies, particularly AI-first startups.",
				"source":          "seed",
			},
		},
	}
}

// seed registers the user and appends the demo documents in order
func seed(ctx context.Context, g gateway.GraphGateway, p person) (seedCounts, error) {
	if err := g.EnsureSubject(ctx, p.UserID, p.hints()); err != nil {
		return seedCounts{}, fmt.Errorf("failed to ensure user: %w", err)
	}

	counts := seedCounts{Skills: len(demoSkills), Experiences: len(demoExperiences)}
	for _, payload := range demoPayloads(p) {
		if err := g.Append(ctx, p.UserID, payload); err != nil {
			return counts, fmt.Errorf("failed to add %s: %w", payload.Type, err)
		}
		counts.Facts++
	}
	return counts, nil
}
