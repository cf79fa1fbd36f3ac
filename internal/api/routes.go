package api

import (
	restfulspec "github.com/emicklei/go-restful-openapi/v2"
	"github.com/emicklei/go-restful/v3"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/api/middleware"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/evidence"
	"github.com/povarna/generative-ai-agents/governed-runtime/internal/models"
)

func RegisterRoutes(container *restful.Container, handler *Handler) {
	ws := new(restful.WebService)

	ws.
		Path("/api/v1").
		Consumes(restful.MIME_JSON).
		Produces(restful.MIME_JSON)

	ws.
		Route(ws.GET("health").
			To(handler.Health).
			Doc("Health check").
			Metadata(restfulspec.KeyOpenAPITags, []string{"health"}).
			Writes(HealthResponse{}).
			Returns(200, "OK", HealthResponse{}))

	ws.
		Route(ws.POST("/runs").
			To(handler.CreateRun).
			Doc("Execute a governed, hybrid or baseline run").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Reads(models.RunRequest{}).
			Writes(models.RunRecord{}).
			Returns(200, "OK", models.RunRecord{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}).
			Returns(502, "Model Invocation Failed", middleware.ErrorResponse{}).
			Returns(500, "Internal Server Error", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/runs/{run_id}").
			To(handler.GetRun).
			Doc("Get a recorded run").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Param(ws.PathParameter("run_id", "Run identifier").DataType("string")).
			Writes(models.RunRecord{}).
			Returns(200, "OK", models.RunRecord{}).
			Returns(404, "Run Not Found", middleware.ErrorResponse{}))

	ws.
		Route(ws.GET("/prompts/{prompt_hash}/runs").
			To(handler.ListPromptRuns).
			Doc("List every run recorded for a prompt hash, oldest first").
			Metadata(restfulspec.KeyOpenAPITags, []string{"runs"}).
			Param(ws.PathParameter("prompt_hash", "SHA-256 of the trimmed prompt").DataType("string")).
			Writes(RunListResponse{}).
			Returns(200, "OK", RunListResponse{}))

	ws.
		Route(ws.GET("/prompts/{prompt_hash}/evidence").
			To(handler.PromptEvidence).
			Doc("Export the evidence document for a prompt hash").
			Metadata(restfulspec.KeyOpenAPITags, []string{"evidence"}).
			Param(ws.PathParameter("prompt_hash", "SHA-256 of the trimmed prompt").DataType("string")).
			Writes(evidence.Document{}).
			Returns(200, "OK", evidence.Document{}).
			Returns(404, "No Runs For Prompt", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/contract/validate").
			To(handler.ValidateContract).
			Doc("Validate a candidate object against the output contract").
			Metadata(restfulspec.KeyOpenAPITags, []string{"contract"}).
			Reads(ValidateRequest{}).
			Writes(models.ValidationResult{}).
			Returns(200, "OK", models.ValidationResult{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	ws.
		Route(ws.POST("/contract/repair").
			To(handler.RepairContract).
			Doc("Run local repair on raw model text and validate the result").
			Metadata(restfulspec.KeyOpenAPITags, []string{"contract"}).
			Reads(RepairRequest{}).
			Writes(RepairResponse{}).
			Returns(200, "OK", RepairResponse{}).
			Returns(400, "Bad Request", middleware.ErrorResponse{}))

	container.Add(ws)
}

// OpenAPIConfig serves the generated OpenAPI document for the container.
func OpenAPIConfig(container *restful.Container) restfulspec.Config {
	return restfulspec.Config{
		WebServices: container.RegisteredWebServices(),
		APIPath:     "/apidocs.json",
	}
}
