package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/comanda-app/api/internal/config"
	"github.com/comanda-app/api/internal/database"
	"github.com/comanda-app/api/internal/enum"
	"github.com/comanda-app/api/internal/logger"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type staffSeed struct {
	name  string
	email string
	role  string
}

type productSeed struct {
	name        string
	price       string
	ingredients []string
}

var demoStaff = []staffSeed{
	{"Carla Caixa", "caixa@comanda.local", enum.RoleCashier},
	{"Gabriel Garcom", "garcon@comanda.local", enum.RoleWaiter},
	{"Eduardo Entregador", "entregador@comanda.local", enum.RoleCourier},
	{"Cecilia Cozinha", "cozinha@comanda.local", enum.RoleKitchen},
}

var demoMenu = map[string][]productSeed{
	"Lanches": {
		{"X-Burger", "25.90", []string{"pao", "hamburguer", "queijo"}},
		{"X-Salada", "27.90", []string{"pao", "hamburguer", "queijo", "alface", "tomate"}},
	},
	"Pratos": {
		{"Parmegiana", "42.00", []string{"file de frango", "molho de tomate", "queijo", "arroz", "fritas"}},
	},
	"Bebidas": {
		{"Refrigerante lata", "6.50", nil},
		{"Suco natural", "9.00", []string{"laranja"}},
	},
}

func main() {
	// CLI flags
	email := flag.String("email", "", "Admin email address")
	password := flag.String("password", "", "Password for the admin and demo staff")
	company := flag.String("company", "", "Demo company name")
	tables := flag.Int("tables", 8, "Number of restaurant tables")
	flag.Parse()

	// Fall back to environment variables, then defaults
	if *email == "" {
		*email = getEnv("SEED_EMAIL", "admin@comanda.local")
	}
	if *password == "" {
		*password = getEnv("SEED_PASSWORD", "comanda123")
	}
	if *company == "" {
		*company = getEnv("SEED_COMPANY", "Comanda Demo")
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: load config: %v\n", err)
		os.Exit(1)
	}
	cfg.Log.Format = "console"
	log, err := logger.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "seed: init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *password == "comanda123" {
		log.Warn("using default seed password, change it in production")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatal("unable to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Fatal("unable to ping database", zap.Error(err))
	}
	log.Info("connected to database")

	// Seed in a transaction: everything or nothing
	tx, err := pool.Begin(ctx)
	if err != nil {
		log.Fatal("failed to begin transaction", zap.Error(err))
	}
	defer tx.Rollback(ctx)

	q := database.New(tx)

	if _, err := q.GetIdentityByEmail(ctx, *email); err == nil {
		log.Info("admin already exists, skipping seed", zap.String("email", *email))
		return
	} else if !errors.Is(err, pgx.ErrNoRows) {
		log.Fatal("failed to check admin", zap.Error(err))
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(*password), bcrypt.DefaultCost)
	if err != nil {
		log.Fatal("failed to hash password", zap.Error(err))
	}

	c, err := q.CreateCompany(ctx, *company)
	if err != nil {
		log.Fatal("failed to create company", zap.Error(err))
	}
	log.Info("created company", zap.String("name", c.Name), zap.String("id", c.ID.String()))

	adminID, err := seedMember(ctx, q, c.ID, staffSeed{"Admin", *email, enum.RoleAdmin}, string(hashed))
	if err != nil {
		log.Fatal("failed to seed admin", zap.Error(err))
	}
	log.Info("created admin", zap.String("email", *email), zap.String("id", adminID.String()))

	for _, s := range demoStaff {
		if _, err := seedMember(ctx, q, c.ID, s, string(hashed)); err != nil {
			log.Fatal("failed to seed staff", zap.String("email", s.email), zap.Error(err))
		}
	}
	log.Info("created staff", zap.Int("count", len(demoStaff)))

	products, err := seedMenu(ctx, q, c.ID)
	if err != nil {
		log.Fatal("failed to seed menu", zap.Error(err))
	}
	log.Info("created menu", zap.Int("categories", len(demoMenu)), zap.Int("products", products))

	for n := 1; n <= *tables; n++ {
		if _, err := q.CreateTable(ctx, database.CreateTableParams{CompanyID: c.ID, Number: int32(n), Capacity: 4}); err != nil {
			log.Fatal("failed to seed table", zap.Int("number", n), zap.Error(err))
		}
	}
	log.Info("created tables", zap.Int("count", *tables))

	if err := tx.Commit(ctx); err != nil {
		log.Fatal("failed to commit", zap.Error(err))
	}
	log.Info("seed completed successfully", zap.String("company_id", c.ID.String()))
}

// seedMember creates an identity and its profile sharing the same id.
func seedMember(ctx context.Context, q *database.Queries, companyID uuid.UUID, s staffSeed, hashed string) (uuid.UUID, error) {
	identity, err := q.CreateIdentity(ctx, database.CreateIdentityParams{Email: s.email, HashedPassword: hashed})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert identity: %w", err)
	}
	_, err = q.CreateProfile(ctx, database.CreateProfileParams{
		ID:        identity.ID,
		CompanyID: companyID,
		Name:      s.name,
		Email:     s.email,
		Role:      s.role,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert profile: %w", err)
	}
	return identity.ID, nil
}

func seedMenu(ctx context.Context, q *database.Queries, companyID uuid.UUID) (int, error) {
	count := 0
	for categoryName, items := range demoMenu {
		cat, err := q.CreateCategory(ctx, database.CreateCategoryParams{CompanyID: companyID, Name: categoryName})
		if err != nil {
			return count, fmt.Errorf("insert category %q: %w", categoryName, err)
		}
		for _, p := range items {
			var price pgtype.Numeric
			if err := price.Scan(p.price); err != nil {
				return count, fmt.Errorf("price %q: %w", p.price, err)
			}
			ingredients := p.ingredients
			if ingredients == nil {
				ingredients = []string{}
			}
			_, err := q.CreateProduct(ctx, database.CreateProductParams{
				CompanyID:   companyID,
				CategoryID:  pgtype.UUID{Bytes: cat.ID, Valid: true},
				Name:        p.name,
				Price:       price,
				Available:   true,
				Ingredients: ingredients,
			})
			if err != nil {
				return count, fmt.Errorf("insert product %q: %w", p.name, err)
			}
			count++
		}
	}
	return count, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
