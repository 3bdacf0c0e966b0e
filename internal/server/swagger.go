package server

//go:generate swag init -g internal/server/server.go -o docs/swagger

// @title Comply API
// @version 0.1
// @description Compliance scans, recurring scan schedules and usage quotas.
// @contact.name Comply Maintainers
// @contact.url https://github.com/raysh454/comply
// @BasePath /
