package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shinyyama/ecograd-backend/internal/config"
	"github.com/shinyyama/ecograd-backend/internal/db"
	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/obs"
	"github.com/shinyyama/ecograd-backend/internal/repository"
	"github.com/shinyyama/ecograd-backend/internal/security"
	"gorm.io/gorm"
)

const demoPassword = "demo1234"

type seedPost struct {
	Title     string
	ItemType  string
	Size      string
	Condition string
	Price     float64
	Status    model.PostStatus
}

func main() {
	if err := run(); err != nil {
		log.Fatalf("seed failed: %v", err)
	}
}

func run() error {
	ctx := context.Background()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := obs.NewLogger(cfg.AppEnv)
	gdb, err := db.Connect(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	force := strings.EqualFold(os.Getenv("FORCE_SEED"), "true")
	n, err := seed(ctx, gdb, security.NewPasswordHasher(cfg.BcryptCost), force)
	if err != nil {
		return err
	}
	if n == 0 {
		logger.Info("posts already exist; skipping seed (set FORCE_SEED=true to override)")
		return nil
	}
	logger.Info("seed completed", "posts", n, "password", demoPassword)
	return nil
}

// seed inserts demo users, posts and one conversation. It does nothing when
// posts exist unless force is set, in which case existing posts (and their
// messages) are removed first.
func seed(ctx context.Context, gdb *gorm.DB, hasher *security.PasswordHasher, force bool) (int, error) {
	var cnt int64
	if err := gdb.WithContext(ctx).Model(&model.Post{}).Count(&cnt).Error; err != nil {
		return 0, fmt.Errorf("count posts: %w", err)
	}
	if cnt > 0 && !force {
		return 0, nil
	}

	hash, err := hasher.Hash(demoPassword)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	posts := buildSeedPosts()

	err = gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&model.Post{}).Error; err != nil {
			return fmt.Errorf("clear posts: %w", err)
		}
		users := repository.NewUserRepository(tx)
		sellers := make([]*model.User, 0, 3)
		for _, name := range []string{"grad_seller", "cap_and_gown", "class_of_2025"} {
			u, err := ensureUser(ctx, users, name, hash)
			if err != nil {
				return err
			}
			sellers = append(sellers, u)
		}

		postRepo := repository.NewPostRepository(tx)
		var first *model.Post
		for i, sp := range posts {
			p := &model.Post{
				UserID:          sellers[i%len(sellers)].ID,
				Title:           sp.Title,
				ItemType:        sp.ItemType,
				Size:            sp.Size,
				ConditionStatus: sp.Condition,
				Price:           sp.Price,
				ContactInfo:     sellers[i%len(sellers)].Username + "@example.com",
				ImageURL:        picsumURL(i + 1),
				Status:          sp.Status,
			}
			if err := postRepo.Create(ctx, p); err != nil {
				return fmt.Errorf("insert post %q: %w", sp.Title, err)
			}
			if first == nil {
				first = p
			}
		}

		return repository.NewMessageRepository(tx).Create(ctx, &model.Message{
			SenderID:   sellers[1].ID,
			ReceiverID: first.UserID,
			PostID:     first.ID,
			Body:       "Is this still available?",
		})
	})
	if err != nil {
		return 0, err
	}
	return len(posts), nil
}

func ensureUser(ctx context.Context, users repository.UserRepository, username, hash string) (*model.User, error) {
	u, err := users.FindByUsername(ctx, username)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("find user %q: %w", username, err)
	}
	u = &model.User{Username: username, PasswordHash: hash}
	if err := users.Create(ctx, u); err != nil {
		return nil, fmt.Errorf("insert user %q: %w", username, err)
	}
	return u, nil
}

func buildSeedPosts() []seedPost {
	colors := []string{"Black", "Navy", "Maroon", "Forest Green"}
	var posts []seedPost
	for i, color := range colors {
		size := []string{"S", "M", "L", "XL"}[i]
		posts = append(posts,
			seedPost{Title: color + " bachelor gown", ItemType: "Gown", Size: size, Condition: "Like New", Price: 35 + float64(i)*5, Status: model.PostStatusActive},
			seedPost{Title: color + " mortarboard cap", ItemType: "Cap", Size: "M", Condition: "New", Price: 12.5 + float64(i), Status: model.PostStatusActive},
			seedPost{Title: color + " honor stole", ItemType: "Stole", Size: "M", Condition: "Worn", Price: 8 + float64(i), Status: model.PostStatusActive},
		)
	}
	posts = append(posts,
		seedPost{Title: "Complete master's regalia set", ItemType: "Set", Size: "L", Condition: "Like New", Price: 89.99, Status: model.PostStatusActive},
		seedPost{Title: "Doctoral gown with hood", ItemType: "Set", Size: "XXL", Condition: "Worn", Price: 120, Status: model.PostStatusSold},
	)
	return posts
}

func picsumURL(index int) *string {
	u := fmt.Sprintf("https://picsum.photos/seed/ecograd-%d/600/600", index)
	return &u
}
