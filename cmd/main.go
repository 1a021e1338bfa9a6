package main

import (
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/thecoder12/library-mangement-system/internal/config"
	"github.com/thecoder12/library-mangement-system/internal/handlers"
	"github.com/thecoder12/library-mangement-system/internal/middleware"
	"github.com/thecoder12/library-mangement-system/internal/models"
	"github.com/thecoder12/library-mangement-system/internal/services"
)

func main() {
	root := &cobra.Command{
		Use:          "library-server",
		Short:        "Library management backend",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd(), migrateCmd(), seedCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDB(cfg config.Config) (*gorm.DB, error) {
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL environment variable is required")
	}

	db, err := gorm.Open(postgres.Open(cfg.DatabaseURL), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	return db, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()

			db, err := openDB(cfg)
			if err != nil {
				return err
			}

			svc := services.NewLibraryService(db, services.Config{
				MaxBooksPerMember: cfg.MaxBooksPerMember,
				DefaultBorrowDays: cfg.DefaultBorrowDays,
			})

			router := gin.New()
			router.Use(middleware.RequestLogger(), gin.Recovery())
			handlers.RegisterRoutes(router, svc)

			srv := &http.Server{
				Addr:         cfg.ServerAddr,
				Handler:      router,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
			}

			log.Printf("[INFO] starting server on %s", cfg.ServerAddr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				return err
			}
			return nil
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB(config.Load())
			if err != nil {
				return err
			}
			if err := models.Migrate(db); err != nil {
				return err
			}
			log.Printf("[INFO] migrations applied")
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Insert a small demo data set",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := openDB(cfg)
			if err != nil {
				return err
			}

			svc := services.NewLibraryService(db, services.Config{
				MaxBooksPerMember: cfg.MaxBooksPerMember,
				DefaultBorrowDays: cfg.DefaultBorrowDays,
			})

			books := []services.CreateBookInput{
				{Title: "The Go Programming Language", Author: "Alan A. A. Donovan", ISBN: strPtr("978-0134190440"), TotalCopies: 3},
				{Title: "Designing Data-Intensive Applications", Author: "Martin Kleppmann", ISBN: strPtr("978-1449373320"), TotalCopies: 2},
				{Title: "The Pragmatic Programmer", Author: "David Thomas", ISBN: strPtr("978-0135957059"), TotalCopies: 1},
			}
			for _, b := range books {
				if _, err := svc.CreateBook(b); err != nil {
					log.Printf("[WARN] seed: skipping book %q: %v", b.Title, err)
				}
			}

			members := []services.CreateMemberInput{
				{Name: "Ada Lovelace", Email: "ada@example.com"},
				{Name: "Grace Hopper", Email: "grace@example.com"},
			}
			for _, m := range members {
				if _, err := svc.CreateMember(m); err != nil {
					log.Printf("[WARN] seed: skipping member %q: %v", m.Name, err)
				}
			}

			log.Printf("[INFO] seed complete")
			return nil
		},
	}
}

func strPtr(s string) *string { return &s }
