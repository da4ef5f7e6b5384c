// Package mcpserver exposes the DeepSeek API client as an MCP server:
// four callable tools (list_models, get_user_balance, chat_completion,
// completion), a static endpoint-manifest resource, and a chat starter
// prompt. Upstream failures surface as tool results with IsError set, so
// the calling agent sees the upstream message verbatim.
package mcpserver
