// Package discovery registers the server with a Consul agent so a load
// balancer can find it.
package discovery

import (
	"fmt"
	"net"
	"os"
	"strconv"

	consul "github.com/hashicorp/consul/api"
	"go.uber.org/zap"
)

// Registrar holds one service registration with a Consul agent.
type Registrar struct {
	agent *consul.Agent
	reg   *consul.AgentServiceRegistration
	log   *zap.Logger
}

// Registration builds the agent registration for serviceName listening on
// listenAddr (":8080" or "host:8080"), with an HTTP check against /healthz.
func Registration(serviceName, listenAddr, hostname string) (*consul.AgentServiceRegistration, error) {
	host, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return nil, fmt.Errorf("listen addr %q: %w", listenAddr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("listen port %q: %w", portStr, err)
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = hostname
	}

	return &consul.AgentServiceRegistration{
		ID:   fmt.Sprintf("%s-%s-%d", serviceName, hostname, port),
		Name: serviceName,
		Port: port,
		Tags: []string{"websocket"},
		Check: &consul.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s/healthz", net.JoinHostPort(host, portStr)),
			Timeout:                        "5s",
			Interval:                       "10s",
			DeregisterCriticalServiceAfter: "1m",
		},
	}, nil
}

// Register announces the service to the agent at consulAddr.
func Register(consulAddr, serviceName, listenAddr string, log *zap.Logger) (*Registrar, error) {
	cfg := consul.DefaultConfig()
	cfg.Address = consulAddr
	client, err := consul.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("consul client: %w", err)
	}

	hostname := os.Getenv("HOSTNAME")
	if hostname == "" {
		hostname, _ = os.Hostname()
	}
	reg, err := Registration(serviceName, listenAddr, hostname)
	if err != nil {
		return nil, err
	}

	if err := client.Agent().ServiceRegister(reg); err != nil {
		return nil, fmt.Errorf("register %s: %w", reg.ID, err)
	}
	log.Info("registered with consul", zap.String("service_id", reg.ID), zap.String("consul", consulAddr))
	return &Registrar{agent: client.Agent(), reg: reg, log: log}, nil
}

func (r *Registrar) Deregister() error {
	if err := r.agent.ServiceDeregister(r.reg.ID); err != nil {
		return fmt.Errorf("deregister %s: %w", r.reg.ID, err)
	}
	r.log.Info("deregistered from consul", zap.String("service_id", r.reg.ID))
	return nil
}
