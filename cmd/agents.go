package cmd

import (
	"pos.GO/agent"
	"pos.GO/config"
)

// newAgents builds the agent registry from env config. Shared by the
// one-off commands; the server wires its own in main.
func newAgents() *agent.Registry {
	config.LoadAppConfig()
	return agent.NewRegistry(config.AppConfig.OfficialAgentURL, config.AppConfig.UnofficialAgentURL)
}
