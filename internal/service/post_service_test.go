package service_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/repository"
	"github.com/shinyyama/ecograd-backend/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

func validInput() service.PostInput {
	return service.PostInput{
		Title:           "Black gown",
		ItemType:        "Gown",
		Size:            "M",
		ConditionStatus: "Like New",
		Price:           45.499,
		ContactInfo:     "alice@example.com",
	}
}

func TestPostCreateValidation(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	dataURI := "data:image/png;base64,AAAA"

	cases := map[string]func(*service.PostInput){
		"empty title":    func(in *service.PostInput) { in.Title = " " },
		"long title":     func(in *service.PostInput) { in.Title = strings.Repeat("x", 51) },
		"bad item type":  func(in *service.PostInput) { in.ItemType = "Hood" },
		"bad size":       func(in *service.PostInput) { in.Size = "XXXL" },
		"bad condition":  func(in *service.PostInput) { in.ConditionStatus = "Used" },
		"zero price":     func(in *service.PostInput) { in.Price = 0 },
		"huge price":     func(in *service.PostInput) { in.Price = 100000000 },
		"no contact":     func(in *service.PostInput) { in.ContactInfo = "" },
		"data uri image": func(in *service.PostInput) { in.ImageURL = &dataURI },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := validInput()
			mutate(&in)
			_, err := svc.Create(context.Background(), 1, in, nil)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
	repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestPostCreate(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	repo.On("Create", mock.Anything, mock.AnythingOfType("*model.Post")).Return(nil).Run(func(args mock.Arguments) {
		args.Get(1).(*model.Post).ID = 10
	})

	p, err := svc.Create(context.Background(), 1, validInput(), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(10), p.ID)
	assert.Equal(t, uint64(1), p.UserID)
	assert.Equal(t, 45.5, p.Price)
	assert.Equal(t, model.PostStatusActive, p.Status)
	assert.Nil(t, p.ImageURL)
}

func TestPostCreateWithImage(t *testing.T) {
	t.Run("stores sniffed image", func(t *testing.T) {
		repo := new(MockPostRepo)
		images := &memoryImages{}
		svc := service.NewPostService(repo, images, 1024)
		repo.On("Create", mock.Anything, mock.Anything).Return(nil)

		p, err := svc.Create(context.Background(), 4, validInput(), &service.ImageUpload{
			Filename: "gown.PNG",
			Body:     bytes.NewReader(pngHeader),
		})
		require.NoError(t, err)
		require.Len(t, images.keys, 1)
		assert.True(t, strings.HasPrefix(images.keys[0], "posts/4/"))
		assert.True(t, strings.HasSuffix(images.keys[0], ".png"))
		assert.Equal(t, "image/png", images.types[0])
		require.NotNil(t, p.ImageURL)
		assert.Equal(t, "https://img.test/"+images.keys[0], *p.ImageURL)
	})

	t.Run("rejects non image", func(t *testing.T) {
		svc := service.NewPostService(new(MockPostRepo), &memoryImages{}, 1024)
		_, err := svc.Create(context.Background(), 4, validInput(), &service.ImageUpload{
			Filename: "notes.txt",
			Body:     strings.NewReader("just some text"),
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("rejects oversized", func(t *testing.T) {
		svc := service.NewPostService(new(MockPostRepo), &memoryImages{}, 16)
		_, err := svc.Create(context.Background(), 4, validInput(), &service.ImageUpload{
			Filename: "big.png",
			Body:     bytes.NewReader(pngHeader),
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("no store configured", func(t *testing.T) {
		svc := service.NewPostService(new(MockPostRepo), nil, 1024)
		_, err := svc.Create(context.Background(), 4, validInput(), &service.ImageUpload{
			Filename: "gown.png",
			Body:     bytes.NewReader(pngHeader),
		})
		assert.ErrorIs(t, err, service.ErrValidation)
	})

	t.Run("upload failure", func(t *testing.T) {
		svc := service.NewPostService(new(MockPostRepo), &memoryImages{err: errors.New("bucket gone")}, 1024)
		_, err := svc.Create(context.Background(), 4, validInput(), &service.ImageUpload{
			Filename: "gown.png",
			Body:     bytes.NewReader(pngHeader),
		})
		assert.ErrorIs(t, err, service.ErrPersistence)
	})
}

func TestPostOwnership(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	repo.On("FindOwned", mock.Anything, uint64(5), uint64(2)).Return(nil, gorm.ErrRecordNotFound)
	ctx := context.Background()

	_, err := svc.Update(ctx, 2, 5, validInput(), nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.ErrorIs(t, svc.UpdateStatus(ctx, 2, 5, "sold"), service.ErrNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, 2, 5), service.ErrNotFound)
	_, err = svc.GetOwned(ctx, 2, 5)
	assert.ErrorIs(t, err, service.ErrNotFound)

	repo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestPostUpdateStatus(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	repo.On("FindOwned", mock.Anything, uint64(5), uint64(1)).Return(&model.Post{ID: 5, UserID: 1, Status: model.PostStatusActive}, nil)
	repo.On("UpdateStatus", mock.Anything, uint64(5), uint64(1), model.PostStatusSold).Return(int64(1), nil)

	require.NoError(t, svc.UpdateStatus(context.Background(), 1, 5, "sold"))
	assert.ErrorIs(t, svc.UpdateStatus(context.Background(), 1, 5, "reserved"), service.ErrValidation)
	repo.AssertNumberOfCalls(t, "UpdateStatus", 1)
}

func TestPostUpdateKeepsImageWhenNoneGiven(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	old := "https://img.test/old.png"
	repo.On("FindOwned", mock.Anything, uint64(5), uint64(1)).Return(&model.Post{ID: 5, UserID: 1, ImageURL: &old}, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	in := validInput()
	in.Title = "Renamed"
	p, err := svc.Update(context.Background(), 1, 5, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", p.Title)
	require.NotNil(t, p.ImageURL)
	assert.Equal(t, old, *p.ImageURL)
}

func TestPostBrowse(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		repo := new(MockPostRepo)
		svc := service.NewPostService(repo, nil, 0)
		repo.On("Search", mock.Anything, mock.MatchedBy(func(f repository.PostFilter) bool {
			return f.Sort == repository.SortNewest &&
				f.Limit == 20 && f.Offset == 0 &&
				len(f.Statuses) == 2
		})).Return([]model.PostWithSeller{}, int64(0), nil)

		_, total, err := svc.Browse(context.Background(), service.BrowseQuery{Offset: -3})
		require.NoError(t, err)
		assert.Zero(t, total)
		repo.AssertExpectations(t)
	})

	t.Run("normalises filters", func(t *testing.T) {
		repo := new(MockPostRepo)
		svc := service.NewPostService(repo, nil, 0)
		repo.On("Search", mock.Anything, mock.MatchedBy(func(f repository.PostFilter) bool {
			return f.Limit == 100 &&
				assert.ObjectsAreEqual([]string{"Gown", "Cap"}, f.ItemTypes) &&
				assert.ObjectsAreEqual([]model.PostStatus{model.PostStatusSold}, f.Statuses) &&
				f.Sort == repository.SortPriceHigh
		})).Return([]model.PostWithSeller{{Post: model.Post{ID: 1}}}, int64(1), nil)

		rows, total, err := svc.Browse(context.Background(), service.BrowseQuery{
			ItemTypes: []string{"Gowns", "Cap"},
			Status:    "sold",
			Sort:      "price-high",
			Limit:     500,
		})
		require.NoError(t, err)
		assert.Len(t, rows, 1)
		assert.Equal(t, int64(1), total)
	})

	t.Run("rejects bad input", func(t *testing.T) {
		svc := service.NewPostService(new(MockPostRepo), nil, 0)
		lo, hi := 50.0, 10.0
		bad := []service.BrowseQuery{
			{MinPrice: &lo, MaxPrice: &hi},
			{ItemTypes: []string{"Robe"}},
			{Sizes: []string{"XXXL"}},
			{Condition: "Used"},
			{Sort: "oldest"},
			{Status: "deleted"},
		}
		for _, q := range bad {
			_, _, err := svc.Browse(context.Background(), q)
			assert.ErrorIs(t, err, service.ErrValidation)
		}
	})
}

func TestPostDetailNotFound(t *testing.T) {
	repo := new(MockPostRepo)
	svc := service.NewPostService(repo, nil, 0)
	repo.On("FindWithSeller", mock.Anything, uint64(99)).Return(nil, gorm.ErrRecordNotFound)
	repo.On("FindByID", mock.Anything, uint64(99)).Return(nil, gorm.ErrRecordNotFound)

	_, err := svc.Detail(context.Background(), 99)
	assert.ErrorIs(t, err, service.ErrNotFound)
	_, err = svc.ImageURL(context.Background(), 99)
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestPostCreateOwnerGone(t *testing.T) {
	repo := new(MockPostRepo)
	repo.On("Create", mock.Anything, mock.Anything).Return(gorm.ErrForeignKeyViolated)
	svc := service.NewPostService(repo, nil, 0)

	_, err := svc.Create(context.Background(), 77, validInput(), nil)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.NotErrorIs(t, err, service.ErrPersistence)
	repo.AssertExpectations(t)
}
