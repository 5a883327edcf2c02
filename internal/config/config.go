// Package config reads model descriptions and builds networks from them.
//
// A model description is a YAML document:
//
//	model:
//	  batch_size: 32
//	  epochs: 10
//	  loss: cross
//	  initializer: xavier_uniform
//	  save_path: model.bin
//	optimizer:
//	  type: adam
//	  properties: [learning_rate=0.001, beta1=0.9]
//	layers:
//	  - type: input
//	    properties: [input_shape=1:1:784, normalization=true]
//	  - type: fully_connected
//	    properties: [unit=10, activation=softmax]
//
// Layer and optimizer properties use the same key=value grammar as
// SetProperty. Unknown fields are rejected.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
	"k8s.io/klog/v2"

	"github.com/born-ml/nntrainer/internal/layers"
	"github.com/born-ml/nntrainer/internal/network"
	"github.com/born-ml/nntrainer/internal/nn"
	"github.com/born-ml/nntrainer/internal/optim"
	"github.com/born-ml/nntrainer/internal/tensor"
)

// Config is a parsed model description.
type Config struct {
	Model     Model     `yaml:"model"`
	Optimizer Optimizer `yaml:"optimizer"`
	Layers    []Layer   `yaml:"layers"`
}

// Model holds the network-wide settings.
type Model struct {
	BatchSize    int    `yaml:"batch_size"`
	Epochs       int    `yaml:"epochs"`
	Loss         string `yaml:"loss"`
	Initializer  string `yaml:"initializer"`
	BiasInitZero bool   `yaml:"bias_init_zero"`
	SavePath     string `yaml:"save_path"`
}

// Optimizer selects and configures the optimizer.
type Optimizer struct {
	Type       string   `yaml:"type"`
	Properties []string `yaml:"properties"`
}

// Layer describes one layer in forward order.
type Layer struct {
	Type       string   `yaml:"type"`
	Properties []string `yaml:"properties"`
}

// Load reads the model description at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(nn.ErrIOFailure, "read %s: %v", path, err)
	}
	cfg, err := Parse(bytes.NewReader(data))
	if err != nil {
		return nil, errors.WithMessagef(err, "%s", path)
	}
	return cfg, nil
}

// Parse decodes a model description and fills defaults: batch size 32,
// one epoch and the sgd optimizer.
func Parse(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.Wrap(nn.ErrInvalidParameter, "empty model description")
		}
		return nil, errors.Wrapf(nn.ErrInvalidParameter, "decode model description: %v", err)
	}
	if cfg.Model.BatchSize == 0 {
		cfg.Model.BatchSize = 32
	}
	if cfg.Model.Epochs == 0 {
		cfg.Model.Epochs = 1
	}
	if cfg.Optimizer.Type == "" {
		cfg.Optimizer.Type = optim.TypeSGD.String()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Model.BatchSize < 0:
		return errors.Wrapf(nn.ErrInvalidParameter, "batch_size must be positive, got %d", c.Model.BatchSize)
	case c.Model.Epochs < 0:
		return errors.Wrapf(nn.ErrInvalidParameter, "epochs must be positive, got %d", c.Model.Epochs)
	case len(c.Layers) == 0:
		return errors.Wrap(nn.ErrInvalidParameter, "no layers")
	}
	return nil
}

// Build creates, configures and initializes the network described by c.
func (c *Config) Build() (*network.Network, error) {
	netCfg := network.Config{
		BatchSize:    c.Model.BatchSize,
		Initializer:  tensor.InitXavierUniform,
		BiasInitZero: c.Model.BiasInitZero,
	}
	var err error
	if netCfg.Cost, err = layers.ParseCost(c.Model.Loss); err != nil {
		return nil, err
	}
	if c.Model.Initializer != "" {
		if netCfg.Initializer, err = tensor.ParseInitializer(c.Model.Initializer); err != nil {
			return nil, errors.Wrapf(nn.ErrInvalidParameter, "model: %v", err)
		}
	}

	opt, err := c.Optimizer.build()
	if err != nil {
		return nil, err
	}

	net := network.New(netCfg)
	for i, lc := range c.Layers {
		t, err := layers.ParseType(lc.Type)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %d", i)
		}
		l, err := layers.NewFromProperties(t, lc.Properties)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %d", i)
		}
		net.AddLayer(l)
	}
	if err := net.SetOptimizer(opt); err != nil {
		return nil, err
	}
	if err := net.Initialize(); err != nil {
		return nil, err
	}

	klog.V(1).Infof("built network: %d layers, optimizer %s, batch size %d", len(c.Layers), opt.Type(), c.Model.BatchSize)
	return net, nil
}

func (o Optimizer) build() (optim.Optimizer, error) {
	t, err := optim.ParseType(o.Type)
	if err != nil {
		return nil, err
	}
	opt, err := optim.New(t, optim.Config{})
	if err != nil {
		return nil, err
	}
	if err := opt.SetProperty(o.Properties); err != nil {
		return nil, err
	}
	return opt, nil
}
