// Package crawler discovers city detail pages from a province listing page.
// Listing fetches are not gated by the detail-fetch permit pool.
package crawler
