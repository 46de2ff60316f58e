package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"path"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shinyyama/ecograd-backend/internal/model"
	"github.com/shinyyama/ecograd-backend/internal/repository"
)

const (
	maxTitleLen  = 50
	maxPrice     = 99999999.99
	defaultLimit = 20
	maxLimit     = 100
)

// ErrImagesDisabled is reported when an upload arrives and no image store is configured.
var ErrImagesDisabled = errors.New("image uploads are not configured")

// ImageStore persists an uploaded image and returns the URL it is served from.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
}

type PostInput struct {
	Title           string
	ItemType        string
	Size            string
	ConditionStatus string
	Price           float64
	ContactInfo     string
	ImageURL        *string
}

type ImageUpload struct {
	Filename string
	Body     io.Reader
}

type BrowseQuery struct {
	MinPrice  *float64
	MaxPrice  *float64
	ItemTypes []string
	Sizes     []string
	Condition string
	Status    string
	Sort      string
	Limit     int
	Offset    int
}

type PostService interface {
	Create(ctx context.Context, ownerID uint64, in PostInput, img *ImageUpload) (*model.Post, error)
	Update(ctx context.Context, ownerID, postID uint64, in PostInput, img *ImageUpload) (*model.Post, error)
	UpdateStatus(ctx context.Context, ownerID, postID uint64, status string) error
	Delete(ctx context.Context, ownerID, postID uint64) error
	Detail(ctx context.Context, postID uint64) (*model.PostWithSeller, error)
	GetOwned(ctx context.Context, ownerID, postID uint64) (*model.Post, error)
	ListMine(ctx context.Context, ownerID uint64) ([]model.Post, error)
	Browse(ctx context.Context, q BrowseQuery) ([]model.PostWithSeller, int64, error)
	ImageURL(ctx context.Context, postID uint64) (*string, error)
}

type postService struct {
	repo          repository.PostRepository
	images        ImageStore
	maxImageBytes int64
}

func NewPostService(repo repository.PostRepository, images ImageStore, maxImageBytes int64) PostService {
	if maxImageBytes <= 0 {
		maxImageBytes = 5 << 20
	}
	return &postService{repo: repo, images: images, maxImageBytes: maxImageBytes}
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func normalizeInput(in PostInput) (PostInput, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.ContactInfo = strings.TrimSpace(in.ContactInfo)
	in.ItemType = strings.TrimSpace(in.ItemType)
	in.Size = strings.TrimSpace(in.Size)
	in.ConditionStatus = strings.TrimSpace(in.ConditionStatus)

	if in.Title == "" || utf8.RuneCountInString(in.Title) > maxTitleLen {
		return in, invalid(fmt.Sprintf("title must be 1-%d characters", maxTitleLen))
	}
	if !oneOf(in.ItemType, model.ItemTypes) {
		return in, invalid("invalid item type")
	}
	if !oneOf(in.Size, model.Sizes) {
		return in, invalid("invalid size")
	}
	if !oneOf(in.ConditionStatus, model.Conditions) {
		return in, invalid("invalid condition")
	}
	if math.IsNaN(in.Price) || in.Price <= 0 || in.Price > maxPrice {
		return in, invalid("invalid price")
	}
	in.Price = math.Round(in.Price*100) / 100
	if in.ContactInfo == "" {
		return in, invalid("contact info is required")
	}
	if in.ImageURL != nil {
		u := strings.TrimSpace(*in.ImageURL)
		if strings.HasPrefix(u, "data:") {
			return in, invalid("imageUrl must be a URL, not data URI")
		}
		if u == "" {
			in.ImageURL = nil
		} else {
			in.ImageURL = &u
		}
	}
	return in, nil
}

// storeImage validates an upload and hands it to the image store.
func (s *postService) storeImage(ctx context.Context, ownerID uint64, img *ImageUpload) (string, error) {
	data, err := io.ReadAll(io.LimitReader(img.Body, s.maxImageBytes+1))
	if err != nil {
		return "", invalid("failed to read image")
	}
	if len(data) == 0 {
		return "", invalid("image is empty")
	}
	if int64(len(data)) > s.maxImageBytes {
		return "", invalid(fmt.Sprintf("image exceeds %d bytes", s.maxImageBytes))
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return "", invalid("file is not an image")
	}
	if s.images == nil {
		return "", invalid(ErrImagesDisabled.Error())
	}

	ext := strings.ToLower(path.Ext(path.Base(strings.ReplaceAll(img.Filename, "\\", "/"))))
	if len(ext) > 5 || strings.ContainsAny(ext, " ?#%") {
		ext = ""
	}
	key := fmt.Sprintf("posts/%d/%s%s", ownerID, uuid.NewString(), ext)
	url, err := s.images.Upload(ctx, key, bytes.NewReader(data), contentType)
	if err != nil {
		return "", fmt.Errorf("%w: upload image: %v", ErrPersistence, err)
	}
	return url, nil
}

func (s *postService) Create(ctx context.Context, ownerID uint64, in PostInput, img *ImageUpload) (*model.Post, error) {
	if ownerID == 0 {
		return nil, ErrUnauthorized
	}
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	if img != nil {
		url, err := s.storeImage(ctx, ownerID, img)
		if err != nil {
			return nil, err
		}
		in.ImageURL = &url
	}
	p := &model.Post{
		UserID:          ownerID,
		Title:           in.Title,
		ItemType:        in.ItemType,
		Size:            in.Size,
		ConditionStatus: in.ConditionStatus,
		Price:           in.Price,
		ContactInfo:     in.ContactInfo,
		ImageURL:        in.ImageURL,
		Status:          model.PostStatusActive,
	}
	if err := s.repo.Create(ctx, p); err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (s *postService) Update(ctx context.Context, ownerID, postID uint64, in PostInput, img *ImageUpload) (*model.Post, error) {
	if postID == 0 {
		return nil, invalid("post id is required")
	}
	in, err := normalizeInput(in)
	if err != nil {
		return nil, err
	}
	p, err := s.repo.FindOwned(ctx, postID, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	if img != nil {
		url, err := s.storeImage(ctx, ownerID, img)
		if err != nil {
			return nil, err
		}
		in.ImageURL = &url
	}
	p.Title = in.Title
	p.ItemType = in.ItemType
	p.Size = in.Size
	p.ConditionStatus = in.ConditionStatus
	p.Price = in.Price
	p.ContactInfo = in.ContactInfo
	if in.ImageURL != nil {
		p.ImageURL = in.ImageURL
	}
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (s *postService) UpdateStatus(ctx context.Context, ownerID, postID uint64, status string) error {
	st := model.PostStatus(strings.TrimSpace(status))
	if postID == 0 {
		return invalid("post id is required")
	}
	if !st.Valid() {
		return invalid(`status must be either "active" or "sold"`)
	}
	if _, err := s.repo.FindOwned(ctx, postID, ownerID); err != nil {
		return storeErr(err)
	}
	if _, err := s.repo.UpdateStatus(ctx, postID, ownerID, st); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *postService) Delete(ctx context.Context, ownerID, postID uint64) error {
	if postID == 0 {
		return invalid("post id is required")
	}
	if _, err := s.repo.FindOwned(ctx, postID, ownerID); err != nil {
		return storeErr(err)
	}
	if _, err := s.repo.Delete(ctx, postID, ownerID); err != nil {
		return storeErr(err)
	}
	return nil
}

func (s *postService) Detail(ctx context.Context, postID uint64) (*model.PostWithSeller, error) {
	p, err := s.repo.FindWithSeller(ctx, postID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (s *postService) GetOwned(ctx context.Context, ownerID, postID uint64) (*model.Post, error) {
	p, err := s.repo.FindOwned(ctx, postID, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p, nil
}

func (s *postService) ListMine(ctx context.Context, ownerID uint64) ([]model.Post, error) {
	list, err := s.repo.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, storeErr(err)
	}
	return list, nil
}

// canonicalItemType accepts both "Gown" and the plural "Gowns" used by the browse page.
func canonicalItemType(v string) (string, bool) {
	v = strings.TrimSpace(v)
	if oneOf(v, model.ItemTypes) {
		return v, true
	}
	if t := strings.TrimSuffix(v, "s"); oneOf(t, model.ItemTypes) {
		return t, true
	}
	return "", false
}

func (s *postService) Browse(ctx context.Context, q BrowseQuery) ([]model.PostWithSeller, int64, error) {
	f := repository.PostFilter{
		MinPrice:  q.MinPrice,
		MaxPrice:  q.MaxPrice,
		Condition: strings.TrimSpace(q.Condition),
		Sort:      strings.TrimSpace(q.Sort),
		Limit:     q.Limit,
		Offset:    q.Offset,
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, 0, invalid("minPrice must not exceed maxPrice")
	}
	for _, t := range q.ItemTypes {
		ct, ok := canonicalItemType(t)
		if !ok {
			return nil, 0, invalid("invalid item type: " + t)
		}
		f.ItemTypes = append(f.ItemTypes, ct)
	}
	for _, sz := range q.Sizes {
		sz = strings.TrimSpace(sz)
		if !oneOf(sz, model.Sizes) {
			return nil, 0, invalid("invalid size: " + sz)
		}
		f.Sizes = append(f.Sizes, sz)
	}
	if f.Condition != "" && !oneOf(f.Condition, model.Conditions) {
		return nil, 0, invalid("invalid condition")
	}
	switch f.Sort {
	case "":
		f.Sort = repository.SortNewest
	case repository.SortNewest, repository.SortPriceLow, repository.SortPriceHigh:
	default:
		return nil, 0, invalid("invalid sort")
	}
	if st := model.PostStatus(strings.TrimSpace(q.Status)); st != "" {
		if !st.Valid() {
			return nil, 0, invalid("invalid status")
		}
		f.Statuses = []model.PostStatus{st}
	} else {
		f.Statuses = []model.PostStatus{model.PostStatusActive, model.PostStatusSold}
	}
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	rows, total, err := s.repo.Search(ctx, f)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return rows, total, nil
}

func (s *postService) ImageURL(ctx context.Context, postID uint64) (*string, error) {
	p, err := s.repo.FindByID(ctx, postID)
	if err != nil {
		return nil, storeErr(err)
	}
	return p.ImageURL, nil
}
