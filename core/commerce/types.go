package commerce

import "strconv"

// MediaRefMode selects how product payloads reference an uploaded image.
type MediaRefMode string

const (
	// MediaRefID references the WordPress attachment id.
	MediaRefID MediaRefMode = "id"
	// MediaRefSrc references the public source URL of the attachment.
	MediaRefSrc MediaRefMode = "src"
)

// Category is a product category as stored by the shop.
type Category struct {
	ID   int64
	Name string
	Slug string
}

// Media is an image to be uploaded to the media library.
type Media struct {
	// Filename is optional; a random name is generated when empty.
	Filename string
	// ContentType is optional; it is sniffed from Data when empty.
	ContentType string
	Data        []byte
}

// MediaRef identifies an uploaded image.
type MediaRef struct {
	ID        int64
	SourceURL string
}

func (r MediaRef) String() string {
	if r.SourceURL != "" {
		return r.SourceURL
	}
	return strconv.FormatInt(r.ID, 10)
}

// ProductInput is everything needed to create a simple product.
type ProductInput struct {
	Name             string
	RegularPrice     string
	ShortDescription string
	CategoryID       int64
	Image            MediaRef
}

// Product is the subset of the created product the bot reports back.
type Product struct {
	ID        int64
	Name      string
	Permalink string
	Status    string
}

// Wire formats.

type categoryRequest struct {
	Name string `json:"name"`
}

type categoryResponse struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

func (r categoryResponse) validate(op string, status int) (Category, error) {
	if r.ID <= 0 {
		return Category{}, missingField(op, "id", status)
	}
	if r.Name == "" {
		return Category{}, missingField(op, "name", status)
	}
	return Category{ID: r.ID, Name: r.Name, Slug: r.Slug}, nil
}

type mediaResponse struct {
	ID        int64  `json:"id"`
	SourceURL string `json:"source_url"`
}

func (r mediaResponse) validate(op string, status int, mode MediaRefMode) (MediaRef, error) {
	if r.ID <= 0 {
		return MediaRef{}, missingField(op, "id", status)
	}
	if mode == MediaRefSrc && r.SourceURL == "" {
		return MediaRef{}, missingField(op, "source_url", status)
	}
	return MediaRef{ID: r.ID, SourceURL: r.SourceURL}, nil
}

type refID struct {
	ID int64 `json:"id"`
}

type refSrc struct {
	Src string `json:"src"`
}

type productRequest struct {
	Name             string  `json:"name"`
	Type             string  `json:"type"`
	RegularPrice     string  `json:"regular_price,omitempty"`
	ShortDescription string  `json:"short_description"`
	Categories       []refID `json:"categories"`
	Images           []any   `json:"images"`
}

type productResponse struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Permalink string `json:"permalink"`
	Status    string `json:"status"`
}

func (r productResponse) validate(op string, status int) (Product, error) {
	if r.ID <= 0 {
		return Product{}, missingField(op, "id", status)
	}
	return Product{ID: r.ID, Name: r.Name, Permalink: r.Permalink, Status: r.Status}, nil
}

// apiError is the error envelope returned by the WordPress REST API.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Status     int   `json:"status"`
		ResourceID int64 `json:"resource_id"`
	} `json:"data"`
}
