package main

// General API documentation for swaggo. Regenerate internal/httpapi/swagger.json with
// `swag init -g cmd/chatd/docs.go -o internal/httpapi --outputTypes json`.
//
// @title           chatd API
// @version         1.0
// @description     Stateless chat endpoint in front of a single language model, plus model loading status.
//
// @contact.name   chatd maintainers
//
// @license.name   MIT
// @license.url    https://opensource.org/licenses/MIT
//
// @BasePath  /
//
// @schemes http
