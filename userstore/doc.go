// Package userstore holds an in-memory user and credential repository for tests,
// the development server and the load generator.
package userstore
