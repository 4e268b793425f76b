package builder

import (
	"fmt"
	"strings"

	"security-content/internal/content"
	"security-content/internal/scope"
)

// selectDeployment picks the deployment for d. A single candidate always binds.
// Among several, the first applicable one in supplied order wins; nil means none applied.
func (b *DetectionBuilder) selectDeployment(d *content.Detection, deployments []*content.Deployment) (*content.Deployment, error) {
	candidates := make([]*content.Deployment, 0, len(deployments))
	for _, dep := range deployments {
		if dep != nil {
			candidates = append(candidates, dep)
		}
	}

	switch len(candidates) {
	case 0:
		return nil, nil
	case 1:
		return candidates[0], nil
	}

	for _, dep := range candidates {
		ok, err := b.applies(dep, d)
		if err != nil {
			return nil, fmt.Errorf("deployment %q: %w", dep.Name, err)
		}
		if ok {
			return dep, nil
		}
	}
	return nil, nil
}

// applies evaluates the deployment's CEL scope when it has one and its tags otherwise.
func (b *DetectionBuilder) applies(dep *content.Deployment, d *content.Detection) (bool, error) {
	if strings.TrimSpace(dep.Scope) != "" {
		compiler, err := b.scopeCompiler()
		if err != nil {
			return false, err
		}
		pred, err := compiler.Compile(dep.Scope)
		if err != nil {
			return false, err
		}
		return pred.Match(d)
	}

	if dep.Tags.DetectionType != "" && !strings.EqualFold(dep.Tags.DetectionType, d.Type) {
		return false, nil
	}
	if dep.Tags.AppliesToAllStories() {
		return true, nil
	}
	for _, story := range d.Tags.AnalyticStory {
		if dep.Tags.AnalyticStory.ContainsFold(story) {
			return true, nil
		}
	}
	return false, nil
}

func (b *DetectionBuilder) scopeCompiler() (*scope.Compiler, error) {
	if b.scopes == nil {
		c, err := scope.NewCompiler()
		if err != nil {
			return nil, err
		}
		b.scopes = c
	}
	return b.scopes, nil
}
