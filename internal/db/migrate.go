package db

import (
	"log"

	"prompt-mastare/internal/prompt"
	"prompt-mastare/internal/user"
)

// Migrate runs database migrations
func Migrate() {
	err := AppDb.AutoMigrate(
		&user.Team{},
		&user.User{},
		&prompt.SharedPrompt{},
		&prompt.PromptComment{},
	)

	if err != nil {
		log.Fatal(err)
	}

	log.Println("Database schema migrated successfully")
}

// SeedData seeds the database with initial data (for development only)
func SeedData() {
	userRepo := user.NewRepository(AppDb)

	testUser := &user.User{
		Name:     "Testmäklare",
		Email:    "maklare@example.com",
		Password: "password123",
		IsActive: true,
	}

	// Check if user exists
	_, err := userRepo.FindByEmail(testUser.Email)
	if err != nil {
		userService := user.NewService(userRepo)
		team := &user.Team{Name: "Demo Mäklarbyrå"}
		if err := userRepo.CreateTeam(team); err != nil {
			log.Printf("Error creating demo team: %v", err)
			return
		}
		testUser.TeamID = team.ID
		if err := userService.Register(testUser); err != nil {
			log.Printf("Error creating test user: %v", err)
		} else {
			log.Printf("Created test user: %s", testUser.Email)
		}
	} else {
		log.Printf("Test user already exists: %s", testUser.Email)
	}
}
