package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/ivanderson2066/velora-storefront/internal/domain"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const apiVersion = "2024-01"

// Client talks to the Shopify Storefront GraphQL API. All methods return
// wrapped errors; callers decide whether a failure is fatal (it never is
// for the cart, which treats price sync and checkout as best-effort).
type Client struct {
	endpoint   string
	token      string
	httpClient *http.Client
}

func NewClient(storeDomain, token string) *Client {
	return &Client{
		endpoint: fmt.Sprintf("https://%s/api/%s/graphql.json", storeDomain, apiVersion),
		token:    token,
		httpClient: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

type graphqlRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphqlError struct {
	Message string `json:"message"`
}

func (c *Client) do(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphqlRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build storefront request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("storefront request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("storefront API returned status %d", resp.StatusCode)
	}

	var envelope struct {
		Data   json.RawMessage `json:"data"`
		Errors []graphqlError  `json:"errors"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode storefront response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return fmt.Errorf("storefront API error: %s", envelope.Errors[0].Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("failed to decode storefront data: %w", err)
	}
	return nil
}

const variantPricesQuery = `
query variantPrices($ids: [ID!]!) {
  nodes(ids: $ids) {
    ... on ProductVariant {
      id
      price {
        amount
        currencyCode
      }
    }
  }
}`

// VariantPrices fetches current authoritative prices for the given
// variant IDs in one batched call. IDs the catalog does not know are
// simply absent from the result.
func (c *Client) VariantPrices(ctx context.Context, ids []string) (map[string]domain.Money, error) {
	var data struct {
		Nodes []struct {
			ID    string        `json:"id"`
			Price *domain.Money `json:"price"`
		} `json:"nodes"`
	}

	err := c.do(ctx, variantPricesQuery, map[string]any{"ids": ids}, &data)
	if err != nil {
		return nil, err
	}

	prices := make(map[string]domain.Money, len(data.Nodes))
	for _, node := range data.Nodes {
		if node.ID == "" || node.Price == nil {
			continue
		}
		prices[node.ID] = *node.Price
	}
	return prices, nil
}

const cartCreateMutation = `
mutation cartCreate($input: CartInput!) {
  cartCreate(input: $input) {
    cart {
      checkoutUrl
    }
    userErrors {
      field
      message
    }
  }
}`

// CreateCheckout creates a hosted checkout for the given lines and
// returns its redirect URL. Only identity and quantity are sent; final
// pricing authority rests with the checkout system.
func (c *Client) CreateCheckout(ctx context.Context, lines []domain.CheckoutLine) (string, error) {
	cartLines := make([]map[string]any, len(lines))
	for i, line := range lines {
		cartLines[i] = map[string]any{
			"merchandiseId": line.VariantID,
			"quantity":      line.Quantity,
		}
	}

	var data struct {
		CartCreate struct {
			Cart *struct {
				CheckoutURL string `json:"checkoutUrl"`
			} `json:"cart"`
			UserErrors []struct {
				Message string `json:"message"`
			} `json:"userErrors"`
		} `json:"cartCreate"`
	}

	input := map[string]any{"input": map[string]any{"lines": cartLines}}
	if err := c.do(ctx, cartCreateMutation, input, &data); err != nil {
		return "", err
	}

	if len(data.CartCreate.UserErrors) > 0 {
		return "", fmt.Errorf("checkout creation rejected: %s", data.CartCreate.UserErrors[0].Message)
	}
	if data.CartCreate.Cart == nil || data.CartCreate.Cart.CheckoutURL == "" {
		return "", fmt.Errorf("checkout creation returned no URL")
	}
	return data.CartCreate.Cart.CheckoutURL, nil
}

const productFields = `
id
handle
title
featuredImage {
  url
}
variants(first: 20) {
  edges {
    node {
      id
      title
      price {
        amount
        currencyCode
      }
    }
  }
}`

type productNode struct {
	ID            string `json:"id"`
	Handle        string `json:"handle"`
	Title         string `json:"title"`
	FeaturedImage *struct {
		URL string `json:"url"`
	} `json:"featuredImage"`
	Variants struct {
		Edges []struct {
			Node struct {
				ID    string        `json:"id"`
				Title string        `json:"title"`
				Price *domain.Money `json:"price"`
			} `json:"node"`
		} `json:"edges"`
	} `json:"variants"`
}

func (p productNode) toSnapshot() domain.ProductSnapshot {
	snapshot := domain.ProductSnapshot{
		ID:     p.ID,
		Handle: p.Handle,
		Title:  p.Title,
	}
	if p.FeaturedImage != nil {
		snapshot.ImageURL = p.FeaturedImage.URL
	}
	for _, edge := range p.Variants.Edges {
		snapshot.Variants = append(snapshot.Variants, domain.VariantSnapshot{
			ID:    edge.Node.ID,
			Title: edge.Node.Title,
			Price: edge.Node.Price,
		})
	}
	return snapshot
}

// Products lists the first n products of the catalog.
func (c *Client) Products(ctx context.Context, first int) ([]domain.ProductSnapshot, error) {
	query := fmt.Sprintf(`
query products($first: Int!) {
  products(first: $first) {
    edges {
      node {
%s
      }
    }
  }
}`, productFields)

	var data struct {
		Products struct {
			Edges []struct {
				Node productNode `json:"node"`
			} `json:"edges"`
		} `json:"products"`
	}

	if err := c.do(ctx, query, map[string]any{"first": first}, &data); err != nil {
		return nil, err
	}

	products := make([]domain.ProductSnapshot, 0, len(data.Products.Edges))
	for _, edge := range data.Products.Edges {
		products = append(products, edge.Node.toSnapshot())
	}
	return products, nil
}

// ErrProductNotFound is returned when the catalog knows no product with
// the requested handle.
var ErrProductNotFound = errors.New("product not found")

// ProductByHandle fetches a single product by its URL handle.
func (c *Client) ProductByHandle(ctx context.Context, handle string) (*domain.ProductSnapshot, error) {
	query := fmt.Sprintf(`
query productByHandle($handle: String!) {
  productByHandle(handle: $handle) {
%s
  }
}`, productFields)

	var data struct {
		ProductByHandle *productNode `json:"productByHandle"`
	}

	if err := c.do(ctx, query, map[string]any{"handle": handle}, &data); err != nil {
		return nil, err
	}
	if data.ProductByHandle == nil {
		return nil, ErrProductNotFound
	}

	snapshot := data.ProductByHandle.toSnapshot()
	return &snapshot, nil
}
