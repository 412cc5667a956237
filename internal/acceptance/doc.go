// Package acceptance runs the storefront's cart and session scenarios end to end against
// the in-memory commerce API.
package acceptance
