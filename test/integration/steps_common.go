package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/cucumber/godog"

	"github.com/doodlesbykumbi/datamapper-in-go/pkg/datamapper"
)

// StepsContext holds state shared between step definitions
type StepsContext struct {
	tc           *TestContext
	mapper       *datamapper.Mapper
	ctx          context.Context
	named        map[string]*datamapper.Resource
	results      []*datamapper.Resource
	status       int
	responseBody []byte
}

// NewStepsContext creates a new steps context
func NewStepsContext(tc *TestContext) *StepsContext {
	return &StepsContext{
		tc:    tc,
		ctx:   context.Background(),
		named: make(map[string]*datamapper.Resource),
	}
}

// RegisterSteps registers all step definitions
func (s *StepsContext) RegisterSteps(sc *godog.ScenarioContext) {
	// Background steps
	sc.Step(`^the library schema$`, s.theLibrarySchema)
	sc.Step(`^the following "([^"]*)" resources exist:$`, s.theFollowingResourcesExist)

	// Repository steps
	sc.Step(`^I open a new repository scope$`, s.iOpenANewRepositoryScope)
	sc.Step(`^I get "([^"]*)" with key "([^"]*)" as "([^"]*)"$`, s.iGetWithKeyAs)
	sc.Step(`^I load all "([^"]*)"$`, s.iLoadAll)
	sc.Step(`^I load all "([^"]*)" where "([^"]*)" is "([^"]*)"$`, s.iLoadAllWhere)

	// Identity steps
	sc.Step(`^"([^"]*)" and "([^"]*)" are the same object$`, s.areTheSameObject)
	sc.Step(`^"([^"]*)" and "([^"]*)" are different objects$`, s.areDifferentObjects)
	sc.Step(`^result (\d+) is "([^"]*)"$`, s.resultIs)
	sc.Step(`^every result has the same "([^"]*)"$`, s.everyResultHasTheSame)

	// Attribute steps
	sc.Step(`^the results have models "([^"]*)"$`, s.theResultsHaveModels)
	sc.Step(`^the results have "([^"]*)" values "([^"]*)"$`, s.theResultsHaveValues)
	sc.Step(`^"([^"]*)" has "([^"]*)" equal to "([^"]*)"$`, s.hasEqualTo)
	sc.Step(`^"([^"]*)" has no "([^"]*)"$`, s.hasNo)

	// Relationship steps
	sc.Step(`^I set "([^"]*)" of "([^"]*)" to a new "([^"]*)" with "([^"]*)" "([^"]*)"$`, s.iSetToANew)
	sc.Step(`^I set "([^"]*)" of "([^"]*)" to nothing$`, s.iSetToNothing)
	sc.Step(`^I add "([^"]*)" to the "([^"]*)" of "([^"]*)"$`, s.iAddTo)
	sc.Step(`^I remove "([^"]*)" from the "([^"]*)" of "([^"]*)"$`, s.iRemoveFrom)
	sc.Step(`^the "([^"]*)" of "([^"]*)" have "([^"]*)" values "([^"]*)"$`, s.theCollectionHasValues)
	sc.Step(`^I save "([^"]*)"$`, s.iSave)
	sc.Step(`^I destroy "([^"]*)"$`, s.iDestroy)

	// HTTP steps
	sc.Step(`^I request "([^"]*)"$`, s.iRequest)
	sc.Step(`^the response status should be (\d+)$`, s.theResponseStatusShouldBe)
	sc.Step(`^the response should contain (\d+) items$`, s.theResponseShouldContainItems)
	sc.Step(`^item (\d+) of the response has "([^"]*)" equal to "([^"]*)"$`, s.itemOfTheResponseHas)
	sc.Step(`^the response has "([^"]*)" equal to "([^"]*)"$`, s.theResponseHas)
	sc.Step(`^the response should contain an item with "([^"]*)" equal to "([^"]*)"$`, s.theResponseShouldContainAnItemWith)
}

// Background steps

func (s *StepsContext) theLibrarySchema() error {
	mapper, err := s.tc.NewMapper()
	if err != nil {
		return err
	}
	s.mapper = mapper
	return s.iOpenANewRepositoryScope()
}

func (s *StepsContext) model(name string) (*datamapper.Model, error) {
	if s.mapper == nil {
		return nil, fmt.Errorf("no schema loaded")
	}
	return s.mapper.MustModel(name)
}

func (s *StepsContext) theFollowingResourcesExist(modelName string, table *godog.Table) error {
	model, err := s.model(modelName)
	if err != nil {
		return err
	}
	if len(table.Rows) == 0 {
		return fmt.Errorf("table has no header")
	}
	header := table.Rows[0].Cells

	return s.mapper.Within(context.Background(), "", func(ctx context.Context) error {
		for _, row := range table.Rows[1:] {
			attrs := make(map[string]any)
			for i, cell := range row.Cells {
				if cell.Value != "" {
					attrs[header[i].Value] = cell.Value
				}
			}
			if _, err := model.CreateOrFail(ctx, attrs); err != nil {
				return fmt.Errorf("create %s %v: %w", modelName, attrs, err)
			}
		}
		return nil
	})
}

// Repository steps

func (s *StepsContext) iOpenANewRepositoryScope() error {
	repo, err := s.mapper.Repository(context.Background(), "")
	if err != nil {
		return err
	}
	s.ctx = datamapper.WithRepository(context.Background(), repo)
	return nil
}

func (s *StepsContext) iGetWithKeyAs(modelName, key, alias string) error {
	model, err := s.model(modelName)
	if err != nil {
		return err
	}
	parts := strings.Split(key, ",")
	values := make([]any, len(parts))
	for i, p := range parts {
		values[i] = p
	}
	res, err := model.GetOrFail(s.ctx, values...)
	if err != nil {
		return err
	}
	s.named[alias] = res
	return nil
}

func (s *StepsContext) iLoadAll(modelName string) error {
	return s.load(modelName, nil)
}

func (s *StepsContext) iLoadAllWhere(modelName, name, value string) error {
	return s.load(modelName, map[string]any{name: value})
}

func (s *StepsContext) load(modelName string, conditions map[string]any) error {
	model, err := s.model(modelName)
	if err != nil {
		return err
	}
	s.results, err = model.All(s.ctx, datamapper.Options{Conditions: conditions})
	return err
}

func (s *StepsContext) resource(alias string) (*datamapper.Resource, error) {
	res, ok := s.named[alias]
	if !ok {
		return nil, fmt.Errorf("no resource named %q", alias)
	}
	return res, nil
}

// Identity steps

func (s *StepsContext) areTheSameObject(a, b string) error {
	ra, err := s.resource(a)
	if err != nil {
		return err
	}
	rb, err := s.resource(b)
	if err != nil {
		return err
	}
	if ra != rb {
		return fmt.Errorf("%s (%p) and %s (%p) are different objects", a, ra, b, rb)
	}
	return nil
}

func (s *StepsContext) areDifferentObjects(a, b string) error {
	if err := s.areTheSameObject(a, b); err == nil {
		return fmt.Errorf("%s and %s are the same object", a, b)
	}
	return nil
}

func (s *StepsContext) resultIs(n int, alias string) error {
	if n < 1 || n > len(s.results) {
		return fmt.Errorf("no result %d, got %d results", n, len(s.results))
	}
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	if s.results[n-1] != res {
		return fmt.Errorf("result %d is %s, not the object named %s", n, s.results[n-1], alias)
	}
	return nil
}

func (s *StepsContext) everyResultHasTheSame(name string) error {
	var first *datamapper.Resource
	for i, res := range s.results {
		v, err := s.path(res, name)
		if err != nil {
			return err
		}
		related, ok := v.(*datamapper.Resource)
		if !ok {
			return fmt.Errorf("%s of result %d is %T, not a resource", name, i+1, v)
		}
		if first == nil {
			first = related
		} else if related != first {
			return fmt.Errorf("%s of result %d is a different object", name, i+1)
		}
	}
	return nil
}

// Attribute steps

// path reads a dotted path such as "author.name" through accessors,
// resolving association proxies to resources.
func (s *StepsContext) path(res *datamapper.Resource, path string) (any, error) {
	var current any = res
	for _, name := range strings.Split(path, ".") {
		r, ok := current.(*datamapper.Resource)
		if !ok || r == nil {
			return nil, fmt.Errorf("cannot read %s of %v", name, current)
		}
		v, err := r.Get(s.ctx, name)
		if err != nil {
			return nil, err
		}
		if proxy, ok := v.(*datamapper.ManyToOneProxy); ok {
			if v, err = proxy.Resolve(s.ctx); err != nil {
				return nil, err
			}
		}
		current = v
	}
	return current, nil
}

func format(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}

func (s *StepsContext) theResultsHaveModels(models string) error {
	var got []string
	for _, res := range s.results {
		got = append(got, res.Model().Name())
	}
	if strings.Join(got, ", ") != models {
		return fmt.Errorf("expected models %q, got %q", models, strings.Join(got, ", "))
	}
	return nil
}

func (s *StepsContext) theResultsHaveValues(name, values string) error {
	return valuesMatch(s, s.results, name, values)
}

func valuesMatch(s *StepsContext, resources []*datamapper.Resource, name, values string) error {
	var got []string
	for _, res := range resources {
		v, err := s.path(res, name)
		if err != nil {
			return err
		}
		got = append(got, format(v))
	}
	if strings.Join(got, ", ") != values {
		return fmt.Errorf("expected %s values %q, got %q", name, values, strings.Join(got, ", "))
	}
	return nil
}

func (s *StepsContext) hasEqualTo(alias, path, expected string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	v, err := s.path(res, path)
	if err != nil {
		return err
	}
	if format(v) != expected {
		return fmt.Errorf("expected %s of %s to be %q, got %q", path, alias, expected, format(v))
	}
	return nil
}

func (s *StepsContext) hasNo(alias, path string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	v, err := s.path(res, path)
	if err != nil {
		return err
	}
	if r, ok := v.(*datamapper.Resource); v != nil && !(ok && r == nil) {
		return fmt.Errorf("expected %s of %s to be empty, got %v", path, alias, v)
	}
	return nil
}

// Relationship steps

func (s *StepsContext) iSetToANew(name, alias, modelName, attr, value string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	model, err := s.model(modelName)
	if err != nil {
		return err
	}
	related, err := model.New(map[string]any{attr: value})
	if err != nil {
		return err
	}
	return res.Set(name, related)
}

func (s *StepsContext) iSetToNothing(name, alias string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	return res.Set(name, nil)
}

func (s *StepsContext) iAddTo(alias, name, ownerAlias string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	owner, err := s.resource(ownerAlias)
	if err != nil {
		return err
	}
	v, err := owner.Get(s.ctx, name)
	if err != nil {
		return err
	}
	switch proxy := v.(type) {
	case *datamapper.OneToManyProxy:
		return proxy.Append(s.ctx, res)
	case *datamapper.ManyToManyProxy:
		return proxy.Append(s.ctx, res)
	}
	return fmt.Errorf("%s of %s is not a collection", name, ownerAlias)
}

func (s *StepsContext) iRemoveFrom(alias, name, ownerAlias string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	owner, err := s.resource(ownerAlias)
	if err != nil {
		return err
	}
	v, err := owner.Get(s.ctx, name)
	if err != nil {
		return err
	}
	var removed bool
	switch proxy := v.(type) {
	case *datamapper.OneToManyProxy:
		removed, err = proxy.Delete(s.ctx, res)
	case *datamapper.ManyToManyProxy:
		removed, err = proxy.Delete(s.ctx, res)
	default:
		return fmt.Errorf("%s of %s is not a collection", name, ownerAlias)
	}
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%s is not in the %s of %s", alias, name, ownerAlias)
	}
	return nil
}

func (s *StepsContext) theCollectionHasValues(name, alias, attr, values string) error {
	owner, err := s.resource(alias)
	if err != nil {
		return err
	}
	v, err := owner.Get(s.ctx, name)
	if err != nil {
		return err
	}
	var members []*datamapper.Resource
	switch proxy := v.(type) {
	case *datamapper.OneToManyProxy:
		members, err = proxy.All(s.ctx)
	case *datamapper.ManyToManyProxy:
		members, err = proxy.All(s.ctx)
	default:
		return fmt.Errorf("%s of %s is not a collection", name, alias)
	}
	if err != nil {
		return err
	}
	return valuesMatch(s, members, attr, values)
}

func (s *StepsContext) iSave(alias string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	return res.SaveOrFail(s.ctx)
}

func (s *StepsContext) iDestroy(alias string) error {
	res, err := s.resource(alias)
	if err != nil {
		return err
	}
	destroyed, err := res.Destroy(s.ctx)
	if err != nil {
		return err
	}
	if !destroyed {
		return fmt.Errorf("%s was not destroyed", alias)
	}
	return nil
}

// HTTP steps

func (s *StepsContext) iRequest(path string) error {
	resp, err := s.tc.HTTPClient.Get(s.tc.HTTP.URL + path)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	s.status = resp.StatusCode
	s.responseBody, err = io.ReadAll(resp.Body)
	return err
}

func (s *StepsContext) theResponseStatusShouldBe(expected int) error {
	if s.status != expected {
		return fmt.Errorf("expected status %d, got %d: %s", expected, s.status, string(s.responseBody))
	}
	return nil
}

func (s *StepsContext) responseItems() ([]map[string]any, error) {
	var items []map[string]any
	if err := json.Unmarshal(s.responseBody, &items); err != nil {
		return nil, fmt.Errorf("response is not a list: %w: %s", err, string(s.responseBody))
	}
	return items, nil
}

func (s *StepsContext) theResponseShouldContainItems(n int) error {
	items, err := s.responseItems()
	if err != nil {
		return err
	}
	if len(items) != n {
		return fmt.Errorf("expected %d items, got %d", n, len(items))
	}
	return nil
}

func (s *StepsContext) itemOfTheResponseHas(n int, name, expected string) error {
	items, err := s.responseItems()
	if err != nil {
		return err
	}
	if n < 1 || n > len(items) {
		return fmt.Errorf("no item %d, got %d items", n, len(items))
	}
	if got := format(items[n-1][name]); got != expected {
		return fmt.Errorf("expected %s of item %d to be %q, got %q", name, n, expected, got)
	}
	return nil
}

func (s *StepsContext) theResponseHas(name, expected string) error {
	var item map[string]any
	if err := json.Unmarshal(s.responseBody, &item); err != nil {
		return fmt.Errorf("response is not an object: %w: %s", err, string(s.responseBody))
	}
	if got := format(item[name]); got != expected {
		return fmt.Errorf("expected %s to be %q, got %q", name, expected, got)
	}
	return nil
}

func (s *StepsContext) theResponseShouldContainAnItemWith(name, expected string) error {
	items, err := s.responseItems()
	if err != nil {
		return err
	}
	for _, item := range items {
		if format(item[name]) == expected {
			return nil
		}
	}
	return fmt.Errorf("no item has %s %q", name, expected)
}
