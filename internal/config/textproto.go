package config

import (
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/prototext"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// unmarshalText parses data as protobuf text format against a dynamicpb
// message built from configFileDescriptor, then copies the result onto
// dst's plain Go fields. janitord carries no .proto file of its own to
// run protoc-gen-go against, so dynamicpb stands in for generated code:
// prototext.Unmarshal itself, and every scalar/repeated/map field rule it
// enforces, is the real google.golang.org/protobuf implementation: only
// the "generated struct" half is hand-written, not the parser.
func unmarshalText(data []byte, dst *Config) error {
	msg := dynamicpb.NewMessage(messageDescriptor("Config"))
	if err := prototext.Unmarshal(data, msg); err != nil {
		return err
	}
	return fillConfig(msg, dst)
}

func fillConfig(msg *dynamicpb.Message, dst *Config) error {
	fields := msg.Descriptor().Fields()

	list := msg.Get(fields.ByName("distribution")).List()
	for i := 0; i < list.Len(); i++ {
		d := &Distribution{}
		if err := fillDistribution(list.Get(i).Message().(*dynamicpb.Message), d); err != nil {
			return err
		}
		dst.Distribution = append(dst.Distribution, d)
	}

	list = msg.Get(fields.ByName("campaign")).List()
	for i := 0; i < list.Len(); i++ {
		c := &Campaign{}
		fillCampaign(list.Get(i).Message().(*dynamicpb.Message), c)
		dst.Campaign = append(dst.Campaign, c)
	}

	list = msg.Get(fields.ByName("apt_repository")).List()
	for i := 0; i < list.Len(); i++ {
		r := &AptRepository{}
		fillAptRepository(list.Get(i).Message().(*dynamicpb.Message), r)
		dst.AptRepository = append(dst.AptRepository, r)
	}

	if runnerField := fields.ByName("runner"); msg.Has(runnerField) {
		r := &RunnerConfig{}
		if err := fillRunnerConfig(msg.Get(runnerField).Message().(*dynamicpb.Message), r); err != nil {
			return err
		}
		dst.Runner = r
	}

	if publisherField := fields.ByName("publisher"); msg.Has(publisherField) {
		p := &PublisherConfig{}
		if err := fillPublisherConfig(msg.Get(publisherField).Message().(*dynamicpb.Message), p); err != nil {
			return err
		}
		dst.Publisher = p
	}

	return nil
}

func fillDistribution(msg *dynamicpb.Message, dst *Distribution) error {
	fields := msg.Descriptor().Fields()
	dst.Name = msg.Get(fields.ByName("name")).String()
	dst.Archive = msg.Get(fields.ByName("archive")).String()
	dst.Component = stringList(msg, fields.ByName("component"))
	dst.ExtraAptRepository = stringList(msg, fields.ByName("extra_apt_repository"))
	return nil
}

func fillCampaign(msg *dynamicpb.Message, dst *Campaign) {
	fields := msg.Descriptor().Fields()
	dst.Name = msg.Get(fields.ByName("name")).String()
	dst.Command = msg.Get(fields.ByName("command")).String()
	dst.PublishMode = msg.Get(fields.ByName("publish_mode")).String()
	dst.Bucket = msg.Get(fields.ByName("bucket")).String()
}

func fillAptRepository(msg *dynamicpb.Message, dst *AptRepository) {
	fields := msg.Descriptor().Fields()
	dst.Name = msg.Get(fields.ByName("name")).String()
	dst.Component = stringList(msg, fields.ByName("component"))
	dst.Architecture = stringList(msg, fields.ByName("architecture"))
	dst.SigningKeyID = msg.Get(fields.ByName("signing_key_id")).String()
}

func fillRunnerConfig(msg *dynamicpb.Message, dst *RunnerConfig) error {
	fields := msg.Descriptor().Fields()
	raw := msg.Get(fields.ByName("run_timeout")).String()
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("run_timeout: %w", err)
		}
		dst.RunTimeout = d
	}
	dst.ListenAddress = msg.Get(fields.ByName("listen_address")).String()
	return nil
}

func fillPublisherConfig(msg *dynamicpb.Message, dst *PublisherConfig) error {
	fields := msg.Descriptor().Fields()
	raw := msg.Get(fields.ByName("proposal_refresh_interval")).String()
	if raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("proposal_refresh_interval: %w", err)
		}
		dst.ProposalRefreshInterval = d
	}

	entryField := fields.ByName("max_mps_per_bucket")
	list := msg.Get(entryField).List()
	if list.Len() > 0 {
		dst.MaxMPsPerBucket = make(map[string]int, list.Len())
		for i := 0; i < list.Len(); i++ {
			entry := list.Get(i).Message().(*dynamicpb.Message)
			entryFields := entry.Descriptor().Fields()
			key := entry.Get(entryFields.ByName("key")).String()
			value := entry.Get(entryFields.ByName("value")).Int()
			dst.MaxMPsPerBucket[key] = int(value)
		}
	}
	return nil
}

func stringList(msg *dynamicpb.Message, fd protoreflect.FieldDescriptor) []string {
	list := msg.Get(fd).List()
	if list.Len() == 0 {
		return nil
	}
	out := make([]string, list.Len())
	for i := 0; i < list.Len(); i++ {
		out[i] = list.Get(i).String()
	}
	return out
}
